package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vmforge"
	"vmforge/internal/provision"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Provisioner yields the terminal outcome for one provisioning attempt.
// provision.Simulator is the production implementation.
type Provisioner interface {
	Run(minDelay, maxDelay time.Duration, failureRate float64) provision.Outcome
}

// Config fixes the provisioning behavior for one Manager instance.
// Passed at construction so a manager's behavior is reproducible; it is
// never re-read from global state at call time.
type Config struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64
	// Workers bounds how many reconciliations run concurrently.
	Workers int
}

// Manager owns the machine lifecycle. Create persists a record in the
// provisioning state and detaches a reconciliation task; the task later
// resolves the record to running or failed through a single conditional
// store update.
type Manager struct {
	store Store
	prov  Provisioner
	cfg   Config
	log   *slog.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewManager wires a lifecycle manager. Workers defaults to 1 when the
// config leaves it unset.
func NewManager(store Store, prov Provisioner, cfg Config) *Manager {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Manager{
		store: store,
		prov:  prov,
		cfg:   cfg,
		log:   slog.With("component", "lifecycle"),
		sem:   semaphore.NewWeighted(int64(cfg.Workers)),
	}
}

// Create records a machine request for ownerID and schedules its
// provisioning. It returns as soon as the record is durable; the caller
// never waits for the provisioning outcome.
//
// A request whose (owner, hostname) pair is already taken fails with
// ErrDuplicateHostname: the pre-check catches the common case, and the
// store's uniqueness constraint settles the concurrent one.
func (m *Manager) Create(ctx context.Context, ownerID string, spec vmforge.MachineSpec) (vmforge.MachineSummary, error) {
	_, err := m.store.FindByHostname(ctx, ownerID, spec.Hostname)
	switch {
	case err == nil:
		m.log.Warn("duplicate hostname rejected", "owner", ownerID, "hostname", spec.Hostname)
		creationsTotal.WithLabelValues("duplicate").Inc()
		return vmforge.MachineSummary{}, ErrDuplicateHostname
	case !errors.Is(err, ErrNotFound):
		creationsTotal.WithLabelValues("error").Inc()
		return vmforge.MachineSummary{}, fmt.Errorf("check hostname: %w", err)
	}

	now := time.Now().UTC()
	rec := vmforge.MachineRecord{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Spec:      spec,
		Status:    vmforge.StatusProvisioning,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateHostname) {
			// Lost the race against an identical concurrent request.
			m.log.Warn("duplicate hostname rejected on insert", "owner", ownerID, "hostname", spec.Hostname)
			creationsTotal.WithLabelValues("duplicate").Inc()
			return vmforge.MachineSummary{}, ErrDuplicateHostname
		}
		creationsTotal.WithLabelValues("error").Inc()
		return vmforge.MachineSummary{}, fmt.Errorf("insert machine: %w", err)
	}

	m.log.Info("machine created", "machine", rec.ID, "owner", ownerID, "hostname", spec.Hostname)
	creationsTotal.WithLabelValues("created").Inc()

	// The record is durable at this point; only now is the task handed
	// off, so no reconciliation can run against an unpersisted record.
	m.wg.Add(1)
	go m.reconcile(rec.ID)

	return rec.Summary(), nil
}

// reconcile resolves one record to a terminal state. It runs detached
// from the request that created the record and is never cancelled; the
// semaphore only bounds how many simulator runs are in flight at once.
func (m *Manager) reconcile(id string) {
	defer m.wg.Done()

	ctx := context.Background()
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer m.sem.Release(1)

	start := time.Now()
	out := m.prov.Run(m.cfg.MinDelay, m.cfg.MaxDelay, m.cfg.FailureRate)
	provisionDuration.Observe(time.Since(start).Seconds())

	t := ToRunning(out.Address)
	if out.Failed() {
		t = ToFailed(out.Reason)
	}

	if err := m.store.UpdateStatus(ctx, id, t); err != nil {
		// Fire-and-forget boundary: nothing retries this. The record
		// stays in provisioning until an operator repairs it.
		outcomesTotal.WithLabelValues("abandoned").Inc()
		m.log.Error("reconciliation abandoned, record stuck in provisioning",
			"machine", id, "err", err)
		return
	}

	if out.Failed() {
		outcomesTotal.WithLabelValues("failed").Inc()
		m.log.Warn("provisioning failed", "machine", id, "reason", out.Reason)
		return
	}
	outcomesTotal.WithLabelValues("provisioned").Inc()
	m.log.Info("machine provisioned", "machine", id, "address", out.Address)
}

// Drain blocks until every scheduled reconciliation has finished or ctx
// expires. Used on shutdown; reconciliations themselves cannot be
// cancelled, so an expired ctx means some records stay provisioning.
func (m *Manager) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
