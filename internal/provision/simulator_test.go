package provision

import (
	"net/netip"
	"strings"
	"testing"
	"time"
)

func testSimulator(t *testing.T) (*Simulator, *[]time.Duration) {
	t.Helper()
	sim := NewSeeded(1, 2)
	var slept []time.Duration
	sim.sleep = func(d time.Duration) { slept = append(slept, d) }
	return sim, &slept
}

func TestRun_AlwaysFailsAtRateOne(t *testing.T) {
	sim, _ := testSimulator(t)

	for i := 0; i < 100; i++ {
		out := sim.Run(0, 0, 1)
		if !out.Failed() {
			t.Fatalf("run %d: got success, want failure at rate 1", i)
		}
		if out.Reason != FailureReason {
			t.Errorf("reason: got %q, want %q", out.Reason, FailureReason)
		}
		if out.Address != "" {
			t.Errorf("failed outcome carries address %q", out.Address)
		}
	}
}

func TestRun_AlwaysSucceedsAtRateZero(t *testing.T) {
	sim, _ := testSimulator(t)

	for i := 0; i < 100; i++ {
		out := sim.Run(0, 0, 0)
		if out.Failed() {
			t.Fatalf("run %d: got failure %q, want success at rate 0", i, out.Reason)
		}
		if out.Address == "" {
			t.Fatal("success outcome has no address")
		}
	}
}

func TestRun_AddressShape(t *testing.T) {
	sim, _ := testSimulator(t)

	for i := 0; i < 500; i++ {
		out := sim.Run(0, 0, 0)
		if !strings.HasPrefix(out.Address, "192.168.") {
			t.Fatalf("address %q outside the 192.168.0.0/16 range", out.Address)
		}
		addr, err := netip.ParseAddr(out.Address)
		if err != nil {
			t.Fatalf("address %q does not parse: %v", out.Address, err)
		}
		last := addr.As4()[3]
		if last == 0 || last == 255 {
			t.Fatalf("address %q uses reserved last octet", out.Address)
		}
	}
}

func TestRun_DelayWithinBounds(t *testing.T) {
	sim, slept := testSimulator(t)

	const minDelay, maxDelay = 10 * time.Millisecond, 50 * time.Millisecond
	for i := 0; i < 200; i++ {
		sim.Run(minDelay, maxDelay, 0)
	}
	for i, d := range *slept {
		if d < minDelay || d > maxDelay {
			t.Fatalf("sleep %d: %v outside [%v, %v]", i, d, minDelay, maxDelay)
		}
	}
}

func TestRun_EqualBoundsYieldExactDelay(t *testing.T) {
	sim, slept := testSimulator(t)

	sim.Run(25*time.Millisecond, 25*time.Millisecond, 0)
	if got := (*slept)[0]; got != 25*time.Millisecond {
		t.Errorf("sleep: got %v, want 25ms", got)
	}
}

func TestNewSeeded_Reproducible(t *testing.T) {
	a := NewSeeded(7, 7)
	b := NewSeeded(7, 7)
	a.sleep = func(time.Duration) {}
	b.sleep = func(time.Duration) {}

	for i := 0; i < 50; i++ {
		outA := a.Run(0, time.Second, 0.5)
		outB := b.Run(0, time.Second, 0.5)
		if outA != outB {
			t.Fatalf("run %d: outcomes diverged: %+v vs %+v", i, outA, outB)
		}
	}
}
