// Package provision simulates the hypervisor side of machine creation.
//
// The simulator is the only source of nondeterminism in the provisioning
// path: it draws a boot delay and a success/failure outcome from an
// injectable random source, so tests can pin the seed or force either
// outcome through the failure rate. It performs no I/O and never touches
// the record store.
package provision

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// FailureReason is the diagnostic recorded on every simulated failure.
const FailureReason = "hypervisor resource allocation failed"

// Outcome is the terminal result of one provisioning attempt.
// Exactly one of Address and Reason is set.
type Outcome struct {
	Address string // assigned network address on success
	Reason  string // diagnostic on failure
}

// Failed reports whether the attempt ended in failure.
func (o Outcome) Failed() bool { return o.Reason != "" }

// Simulator produces provisioning outcomes. Safe for concurrent use.
type Simulator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(time.Duration)
}

// New returns a Simulator seeded from the shared random source.
func New() *Simulator {
	return NewSeeded(rand.Uint64(), rand.Uint64())
}

// NewSeeded returns a Simulator with a fixed seed, for reproducible runs.
func NewSeeded(seed1, seed2 uint64) *Simulator {
	return &Simulator{
		rng:   rand.New(rand.NewPCG(seed1, seed2)),
		sleep: time.Sleep,
	}
}

// Run blocks for a delay drawn uniformly from [minDelay, maxDelay], then
// reports failure with probability failureRate and success otherwise.
// There is no cancellation: a started attempt always runs to completion.
func (s *Simulator) Run(minDelay, maxDelay time.Duration, failureRate float64) Outcome {
	s.sleep(s.delay(minDelay, maxDelay))

	if s.roll() < failureRate {
		return Outcome{Reason: FailureReason}
	}
	return Outcome{Address: s.address()}
}

func (s *Simulator) delay(minDelay, maxDelay time.Duration) time.Duration {
	if maxDelay <= minDelay {
		return minDelay
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return minDelay + time.Duration(s.rng.Int64N(int64(maxDelay-minDelay)+1))
}

func (s *Simulator) roll() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// address synthesizes a private-range IPv4 address. The trailing octets
// are drawn independently from their valid ranges (the last octet skips
// .0 and .255). Issued addresses are not checked against existing
// records; collisions are possible and accepted in the simulated
// environment.
func (s *Simulator) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("192.168.%d.%d", s.rng.IntN(256), 1+s.rng.IntN(254))
}
