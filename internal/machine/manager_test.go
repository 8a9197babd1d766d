package machine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"vmforge"
	"vmforge/internal/adapter/memory"
	"vmforge/internal/machine"
	"vmforge/internal/provision"
)

// instant provisions with zero delay so tests stay fast; the failure
// rate pins the outcome.
func instant(failureRate float64) machine.Config {
	return machine.Config{FailureRate: failureRate, Workers: 4}
}

func spec(hostname string) vmforge.MachineSpec {
	return vmforge.MachineSpec{
		Hostname: hostname,
		Password: "correct-horse",
		CPUCores: 2,
		MemoryGB: 4,
		DiskGB:   20,
		OS:       "linux",
	}
}

func drain(t *testing.T, m *machine.Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestCreate_ReturnsProvisioningImmediately(t *testing.T) {
	store := memory.New()
	mgr := machine.NewManager(store, provision.NewSeeded(1, 1), instant(0))

	sum, err := mgr.Create(context.Background(), "u1", spec("web-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sum.Status != vmforge.StatusProvisioning {
		t.Errorf("Status: got %q, want %q", sum.Status, vmforge.StatusProvisioning)
	}
	if sum.NetworkAddress != "" || sum.FailureReason != "" {
		t.Errorf("fresh summary carries outcome fields: %+v", sum)
	}
	if sum.ID == "" {
		t.Error("summary has no id")
	}
	if sum.Hostname != "web-1" || sum.CPUCores != 2 || sum.MemoryGB != 4 || sum.DiskGB != 20 || sum.OS != "linux" {
		t.Errorf("summary does not echo the requested spec: %+v", sum)
	}
	drain(t, mgr)
}

func TestCreate_DuplicateHostname(t *testing.T) {
	store := memory.New()
	mgr := machine.NewManager(store, provision.NewSeeded(1, 1), instant(0))
	ctx := context.Background()

	if _, err := mgr.Create(ctx, "u1", spec("web-1")); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := mgr.Create(ctx, "u1", spec("web-1"))
	if !errors.Is(err, machine.ErrDuplicateHostname) {
		t.Fatalf("second Create: got %v, want ErrDuplicateHostname", err)
	}

	// A different owner may reuse the hostname.
	if _, err := mgr.Create(ctx, "u2", spec("web-1")); err != nil {
		t.Errorf("Create for other owner: %v", err)
	}
	drain(t, mgr)
}

// blindStore hides existing records from the fast-path check, forcing
// Create down the insert-conflict path that covers the lost race.
type blindStore struct {
	*memory.Store
}

func (s blindStore) FindByHostname(ctx context.Context, ownerID, hostname string) (vmforge.MachineRecord, error) {
	return vmforge.MachineRecord{}, machine.ErrNotFound
}

func TestCreate_DuplicateLosesInsertRace(t *testing.T) {
	store := memory.New()
	mgr := machine.NewManager(blindStore{store}, provision.NewSeeded(1, 1), instant(0))
	ctx := context.Background()

	if _, err := mgr.Create(ctx, "u1", spec("web-1")); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := mgr.Create(ctx, "u1", spec("web-1"))
	if !errors.Is(err, machine.ErrDuplicateHostname) {
		t.Fatalf("raced Create: got %v, want ErrDuplicateHostname", err)
	}
	drain(t, mgr)
}

func TestCreate_ConcurrentSameHostname(t *testing.T) {
	store := memory.New()
	mgr := machine.NewManager(store, provision.NewSeeded(1, 1), instant(0))

	const callers = 16
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Create(context.Background(), "u1", spec("contended"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, machine.ErrDuplicateHostname):
			dup++
		default:
			t.Fatalf("unexpected Create error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful creations: got %d, want exactly 1", ok)
	}
	if dup != callers-1 {
		t.Errorf("duplicate rejections: got %d, want %d", dup, callers-1)
	}
	drain(t, mgr)
}

func TestReconcile_Success(t *testing.T) {
	store := memory.New()
	mgr := machine.NewManager(store, provision.NewSeeded(1, 1), instant(0))

	sum, err := mgr.Create(context.Background(), "u1", spec("web-1"))
	if err != nil {
		t.Fatal(err)
	}
	drain(t, mgr)

	got, err := store.GetByID(context.Background(), sum.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != vmforge.StatusRunning {
		t.Fatalf("Status: got %q, want %q", got.Status, vmforge.StatusRunning)
	}
	if !strings.HasPrefix(got.NetworkAddress, "192.168.") {
		t.Errorf("NetworkAddress: got %q, want a 192.168.*.* address", got.NetworkAddress)
	}
	if got.FailureReason != "" {
		t.Errorf("FailureReason on success: %q", got.FailureReason)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Errorf("UpdatedAt not refreshed: created %v, updated %v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestReconcile_Failure(t *testing.T) {
	store := memory.New()
	mgr := machine.NewManager(store, provision.NewSeeded(1, 1), instant(1))

	sum, err := mgr.Create(context.Background(), "u1", spec("web-1"))
	if err != nil {
		t.Fatal(err)
	}
	drain(t, mgr)

	got, err := store.GetByID(context.Background(), sum.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != vmforge.StatusFailed {
		t.Fatalf("Status: got %q, want %q", got.Status, vmforge.StatusFailed)
	}
	if got.FailureReason != provision.FailureReason {
		t.Errorf("FailureReason: got %q, want %q", got.FailureReason, provision.FailureReason)
	}
	if got.NetworkAddress != "" {
		t.Errorf("NetworkAddress on failure: %q", got.NetworkAddress)
	}
}

func TestReconcile_AllRecordsReachTerminalState(t *testing.T) {
	store := memory.New()
	mgr := machine.NewManager(store, provision.NewSeeded(3, 9), machine.Config{FailureRate: 0.5, Workers: 4})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if _, err := mgr.Create(ctx, "u1", spec(fmt.Sprintf("m-%02d", i))); err != nil {
			t.Fatal(err)
		}
	}
	drain(t, mgr)

	recs, total, err := store.ListByOwner(ctx, "u1", 1, 50, machine.SortCreatedDesc)
	if err != nil {
		t.Fatal(err)
	}
	if total != 20 {
		t.Fatalf("total: got %d, want 20", total)
	}
	for _, rec := range recs {
		if !rec.Status.Terminal() {
			t.Errorf("machine %s still %q after drain", rec.ID, rec.Status)
		}
		hasAddr := rec.NetworkAddress != ""
		hasReason := rec.FailureReason != ""
		if hasAddr == hasReason {
			t.Errorf("machine %s violates outcome exclusivity: %+v", rec.ID, rec)
		}
	}
}

func TestReconcile_AbandonedOnStoreFailure(t *testing.T) {
	store := memory.New()
	store.UpdateErr = errors.New("store offline")
	mgr := machine.NewManager(store, provision.NewSeeded(1, 1), instant(0))

	sum, err := mgr.Create(context.Background(), "u1", spec("web-1"))
	if err != nil {
		t.Fatal(err)
	}
	drain(t, mgr)

	// The attempt is logged and dropped; the record stays provisioning.
	got, err := store.GetByID(context.Background(), sum.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != vmforge.StatusProvisioning {
		t.Errorf("Status: got %q, want %q", got.Status, vmforge.StatusProvisioning)
	}
}

func TestCreate_StoreUnavailable(t *testing.T) {
	store := memory.New()
	store.LookupErr = errors.New("store offline")
	mgr := machine.NewManager(store, provision.NewSeeded(1, 1), instant(0))

	_, err := mgr.Create(context.Background(), "u1", spec("web-1"))
	if err == nil {
		t.Fatal("Create succeeded against an unavailable store")
	}
	if errors.Is(err, machine.ErrDuplicateHostname) {
		t.Fatalf("store failure misreported as duplicate: %v", err)
	}
}
