package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cesargomez89/flixetl/internal/domain"
)

// Lease is the row that serializes builds across every process sharing the
// database.
type Lease struct {
	RunID      string `db:"run_id"`
	Holder     string `db:"holder"`
	AcquiredAt int64  `db:"acquired_at"`
	ExpiresAt  int64  `db:"expires_at"`
}

// AcquireLease claims the build lease for runID until ttl elapses. An expired
// lease is taken over. It returns domain.ErrBuildInProgress while another
// lease is live.
func (db *DB) AcquireLease(ctx context.Context, runID string, ttl time.Duration) error {
	now := time.Now()
	return db.RunInTx(ctx, func(tx *DB) error {
		if err := tx.exec(ctx, `DELETE FROM build_lease WHERE expires_at <= ?`, now.UnixMilli()); err != nil {
			return err
		}

		query := `INSERT INTO build_lease (id, run_id, holder, acquired_at, expires_at)
			VALUES (1, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`
		res, err := tx.ExecContext(ctx, tx.Rebind(query),
			runID, leaseHolder(), now.UnixMilli(), now.Add(ttl).UnixMilli())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrBuildInProgress
		}
		return nil
	})
}

// RenewLease extends the lease held by runID.
func (db *DB) RenewLease(ctx context.Context, runID string, ttl time.Duration) error {
	res, err := db.ExecContext(ctx, db.Rebind(`UPDATE build_lease SET expires_at = ? WHERE run_id = ?`),
		time.Now().Add(ttl).UnixMilli(), runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrLeaseLost
	}
	return nil
}

func (db *DB) ReleaseLease(ctx context.Context, runID string) error {
	return db.exec(ctx, `DELETE FROM build_lease WHERE run_id = ?`, runID)
}

// CurrentLease returns the live lease, or nil when no build holds one.
func (db *DB) CurrentLease(ctx context.Context) (*Lease, error) {
	var leases []Lease
	query := `SELECT run_id, holder, acquired_at, expires_at FROM build_lease WHERE expires_at > ?`
	if err := db.selectAll(ctx, &leases, query, time.Now().UnixMilli()); err != nil {
		return nil, err
	}
	if len(leases) == 0 {
		return nil, nil
	}
	return &leases[0], nil
}

func leaseHolder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
