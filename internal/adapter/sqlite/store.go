// Package sqlite is the durable machine.Store. The (owner_id, hostname)
// uniqueness that makes creation idempotent is enforced by a partial
// unique index over non-deleted rows, so the conflict check happens
// atomically inside the storage engine, not in application code.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vmforge"
	"vmforge/internal/machine"

	sqlite3 "modernc.org/sqlite"
)

// sqliteConstraintUnique is SQLITE_CONSTRAINT_UNIQUE, raised when an
// insert collides with the owner/hostname index.
const sqliteConstraintUnique = 2067

const schema = `
CREATE TABLE IF NOT EXISTS machines (
	id              TEXT PRIMARY KEY,
	owner_id        TEXT NOT NULL,
	hostname        TEXT NOT NULL,
	password        TEXT NOT NULL,
	cpu_cores       INTEGER NOT NULL,
	memory_gb       INTEGER NOT NULL,
	disk_gb         INTEGER NOT NULL,
	os              TEXT NOT NULL,
	status          TEXT NOT NULL,
	network_address TEXT,
	failure_reason  TEXT,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS machines_owner_hostname
	ON machines(owner_id, hostname) WHERE status != 'deleted';
CREATE INDEX IF NOT EXISTS machines_owner ON machines(owner_id);
`

const columns = `id, owner_id, hostname, password, cpu_cores, memory_gb, disk_gb, os,
	status, network_address, failure_reason, created_at, updated_at`

type Store struct {
	db *sql.DB
}

// Open creates or opens the machine database at path, applying the
// schema and the pragmas the daemon needs for concurrent access.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open machine db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set machine db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set machine db busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize machines schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, rec vmforge.MachineRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO machines (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.OwnerID,
		rec.Spec.Hostname,
		rec.Spec.Password,
		rec.Spec.CPUCores,
		rec.Spec.MemoryGB,
		rec.Spec.DiskGB,
		rec.Spec.OS,
		string(rec.Status),
		nullIfEmpty(rec.NetworkAddress),
		nullIfEmpty(rec.FailureReason),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		var serr *sqlite3.Error
		if errors.As(err, &serr) && serr.Code() == sqliteConstraintUnique {
			return machine.ErrDuplicateHostname
		}
		return fmt.Errorf("insert machine %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (vmforge.MachineRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM machines WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return vmforge.MachineRecord{}, machine.ErrNotFound
		}
		return vmforge.MachineRecord{}, fmt.Errorf("query machine %s: %w", id, err)
	}
	return rec, nil
}

func (s *Store) FindByHostname(ctx context.Context, ownerID, hostname string) (vmforge.MachineRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM machines
		 WHERE owner_id = ? AND hostname = ? AND status != ?`,
		ownerID, hostname, string(vmforge.StatusDeleted))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return vmforge.MachineRecord{}, machine.ErrNotFound
		}
		return vmforge.MachineRecord{}, fmt.Errorf("query machine %s/%s: %w", ownerID, hostname, err)
	}
	return rec, nil
}

// UpdateStatus applies a terminal transition as a single conditional
// UPDATE guarded on the provisioning state. The guard is what makes
// transitions one-shot under concurrency: of two racing updates only
// one can see status = 'provisioning'.
func (s *Store) UpdateStatus(ctx context.Context, id string, t machine.Transition) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE machines
		 SET status = ?, network_address = ?, failure_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(t.To),
		nullIfEmpty(t.Address),
		nullIfEmpty(t.Reason),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		string(vmforge.StatusProvisioning),
	)
	if err != nil {
		return fmt.Errorf("update machine %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update machine %s: %w", id, err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing matched: the row is gone or already terminal.
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return machine.ErrNotProvisioning
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string, page, pageSize int, order machine.SortOrder) ([]vmforge.MachineRecord, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM machines WHERE owner_id = ?`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count machines for %s: %w", ownerID, err)
	}

	dir := "DESC"
	if order == machine.SortCreatedAsc {
		dir = "ASC"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM machines
		 WHERE owner_id = ?
		 ORDER BY created_at `+dir+`, id
		 LIMIT ? OFFSET ?`,
		ownerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list machines for %s: %w", ownerID, err)
	}
	defer rows.Close()

	recs := make([]vmforge.MachineRecord, 0, pageSize)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list machines for %s: %w", ownerID, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list machines for %s: %w", ownerID, err)
	}
	return recs, total, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (vmforge.MachineRecord, error) {
	var (
		rec                    vmforge.MachineRecord
		status                 string
		address, reason        sql.NullString
		createdStr, updatedStr string
	)
	err := sc.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Spec.Hostname,
		&rec.Spec.Password,
		&rec.Spec.CPUCores,
		&rec.Spec.MemoryGB,
		&rec.Spec.DiskGB,
		&rec.Spec.OS,
		&status,
		&address,
		&reason,
		&createdStr,
		&updatedStr,
	)
	if err != nil {
		return vmforge.MachineRecord{}, err
	}

	rec.Status = vmforge.Status(status)
	rec.NetworkAddress = address.String
	rec.FailureReason = reason.String

	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return vmforge.MachineRecord{}, fmt.Errorf("parse created_at for %s: %w", rec.ID, err)
	}
	rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedStr)
	if err != nil {
		return vmforge.MachineRecord{}, fmt.Errorf("parse updated_at for %s: %w", rec.ID, err)
	}
	return rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
