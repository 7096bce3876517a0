package repair

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Relay drains the repair queue: claim a batch with FOR UPDATE SKIP LOCKED,
// replay each job, retire it on success or push it back with backoff.
type Relay struct {
	pool     *pgxpool.Pool
	repairer Repairer
	opts     RelayOptions

	lockKey int64
	m       *metrics
}

func NewRelay(pool *pgxpool.Pool, repairer Repairer, opts RelayOptions) (*Relay, error) {
	if pool == nil {
		return nil, errors.New("repair: pool is required")
	}
	if repairer == nil {
		return nil, errors.New("repair: repairer is required")
	}
	opts.setDefaults()
	if opts.Logger == nil {
		nop := logrus.New()
		nop.SetLevel(logrus.PanicLevel)
		opts.Logger = logrus.NewEntry(nop)
	}
	return &Relay{
		pool:     pool,
		repairer: repairer,
		opts:     opts,
		lockKey:  advisoryLockKey("index_repair_queue"),
		m:        getMetrics(),
	}, nil
}

func (r *Relay) Run(ctx context.Context) error {
	if r.opts.SingleActive {
		return r.runSingleActive(ctx)
	}
	r.m.relayLeader.Set(1)
	return r.runLoop(ctx, nil)
}

func (r *Relay) runSingleActive(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			r.opts.Logger.WithError(err).Warn("repair: failed to acquire connection")
			if err := sleep(ctx, r.opts.PollInterval); err != nil {
				return err
			}
			continue
		}

		var leader bool
		if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, r.lockKey).Scan(&leader); err != nil {
			conn.Release()
			r.opts.Logger.WithError(err).Warn("repair: advisory lock attempt failed")
			if err := sleep(ctx, r.opts.PollInterval); err != nil {
				return err
			}
			continue
		}
		if !leader {
			r.m.relayLeader.Set(0)
			conn.Release()
			if err := sleep(ctx, r.opts.PollInterval); err != nil {
				return err
			}
			continue
		}

		r.m.relayLeader.Set(1)
		r.opts.Logger.Info("repair: relay became leader")
		err = r.runLoop(ctx, conn)
		var unlocked bool
		_ = conn.QueryRow(context.Background(), `SELECT pg_advisory_unlock($1::bigint)`, r.lockKey).Scan(&unlocked)
		conn.Release()
		return err
	}
}

func (r *Relay) runLoop(ctx context.Context, conn *pgxpool.Conn) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	nextDepthAt := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(nextDepthAt) {
			if err := r.observeQueueDepth(ctx, conn); err != nil {
				r.opts.Logger.WithError(err).Debug("repair: observe queue depth failed")
			}
			nextDepthAt = time.Now().Add(r.opts.ObserveQueueDepthEvery)
		}

		if err := r.processOnce(ctx, conn); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("repair: process tick failed")
		}
	}
}

func (r *Relay) processOnce(ctx context.Context, conn *pgxpool.Conn) error {
	now := time.Now()
	jobs, err := r.claim(ctx, conn, now, now.Add(-r.opts.LockTTL))
	if err != nil {
		return err
	}

	for _, job := range jobs {
		repairCtx := ctx
		var cancel func()
		if r.opts.RepairTimeout > 0 {
			repairCtx, cancel = context.WithTimeout(ctx, r.opts.RepairTimeout)
		}
		start := time.Now()
		err := r.repairer.Repair(repairCtx, job)
		if cancel != nil {
			cancel()
		}
		latency := time.Since(start)

		if err == nil {
			r.m.repairTotal.WithLabelValues(job.Kind, "success").Inc()
			r.m.repairLatency.WithLabelValues(job.Kind, "success").Observe(latency.Seconds())
			if ackErr := r.ack(ctx, conn, job.ID); ackErr != nil {
				r.opts.Logger.WithError(ackErr).WithField("job_id", job.ID).Warn("repair: ack failed")
			}
			continue
		}

		r.m.repairTotal.WithLabelValues(job.Kind, "failure").Inc()
		r.m.repairLatency.WithLabelValues(job.Kind, "failure").Observe(latency.Seconds())
		lastErr := truncate(err.Error(), r.opts.LastErrorMaxLen)

		if job.Attempts >= r.opts.MaxAttempts {
			r.m.deadTotal.WithLabelValues(job.Kind).Inc()
			if deadErr := r.dead(ctx, conn, job.ID, lastErr); deadErr != nil {
				r.opts.Logger.WithError(deadErr).WithField("job_id", job.ID).Warn("repair: dead update failed")
			}
			continue
		}

		next := time.Now().Add(backoff(job.Attempts, r.opts.MaxBackoff) + jitter(r.opts.Rand, r.opts.JitterMax))
		if nackErr := r.nack(ctx, conn, job.ID, lastErr, next); nackErr != nil {
			r.opts.Logger.WithError(nackErr).WithField("job_id", job.ID).Warn("repair: nack failed")
		}
	}
	return nil
}

func (r *Relay) claim(ctx context.Context, conn *pgxpool.Conn, now, lockCutoff time.Time) ([]Job, error) {
	tx, err := r.begin(ctx, conn)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, entity_kind, entity_ids, attempts
		  FROM index_repair_queue
		 WHERE repaired_at IS NULL
		   AND available_at <= $1
		   AND attempts < $2
		   AND (locked_at IS NULL OR locked_at < $3)
		 ORDER BY available_at, created_at
		 LIMIT $4
		 FOR UPDATE SKIP LOCKED
	`, now, r.opts.MaxAttempts, lockCutoff, r.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("repair claim select: %w", err)
	}
	var jobs []Job
	var ids []uuid.UUID
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Kind, &job.EntityIDs, &job.Attempts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("repair claim scan: %w", err)
		}
		job.Attempts++
		jobs = append(jobs, job)
		ids = append(ids, job.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repair claim rows: %w", err)
	}
	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE index_repair_queue SET locked_at = $1, attempts = attempts + 1 WHERE id = ANY($2)
	`, now, ids); err != nil {
		return nil, fmt.Errorf("repair claim update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *Relay) ack(ctx context.Context, conn *pgxpool.Conn, id uuid.UUID) error {
	_, err := r.exec(ctx, conn, `
		UPDATE index_repair_queue
		   SET repaired_at = now(), locked_at = NULL, last_error = NULL
		 WHERE id = $1 AND repaired_at IS NULL
	`, id)
	return err
}

func (r *Relay) nack(ctx context.Context, conn *pgxpool.Conn, id uuid.UUID, lastError string, nextAvailable time.Time) error {
	_, err := r.exec(ctx, conn, `
		UPDATE index_repair_queue
		   SET locked_at = NULL, last_error = $2, available_at = $3
		 WHERE id = $1 AND repaired_at IS NULL
	`, id, lastError, nextAvailable)
	return err
}

func (r *Relay) dead(ctx context.Context, conn *pgxpool.Conn, id uuid.UUID, lastError string) error {
	_, err := r.exec(ctx, conn, `
		UPDATE index_repair_queue
		   SET locked_at = NULL, last_error = $2, available_at = now()
		 WHERE id = $1 AND repaired_at IS NULL
	`, id, lastError)
	return err
}

func (r *Relay) observeQueueDepth(ctx context.Context, conn *pgxpool.Conn) error {
	q := r.queryer(conn)
	var pending, locked int64
	if err := q.QueryRow(ctx, `SELECT count(*) FROM index_repair_queue WHERE repaired_at IS NULL`).Scan(&pending); err != nil {
		return fmt.Errorf("repair pending count: %w", err)
	}
	if err := q.QueryRow(ctx, `SELECT count(*) FROM index_repair_queue WHERE repaired_at IS NULL AND locked_at IS NOT NULL`).Scan(&locked); err != nil {
		return fmt.Errorf("repair locked count: %w", err)
	}
	r.m.pending.Set(float64(pending))
	r.m.locked.Set(float64(locked))
	return nil
}

func (r *Relay) begin(ctx context.Context, conn *pgxpool.Conn) (pgx.Tx, error) {
	if conn != nil {
		return conn.BeginTx(ctx, pgx.TxOptions{})
	}
	return r.pool.BeginTx(ctx, pgx.TxOptions{})
}

func (r *Relay) exec(ctx context.Context, conn *pgxpool.Conn, sql string, args ...any) (int64, error) {
	if conn != nil {
		tag, err := conn.Exec(ctx, sql, args...)
		return tag.RowsAffected(), err
	}
	tag, err := r.pool.Exec(ctx, sql, args...)
	return tag.RowsAffected(), err
}

type rowQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Relay) queryer(conn *pgxpool.Conn) rowQueryer {
	if conn != nil {
		return conn
	}
	return r.pool
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}

func truncate(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	b := []byte(s[:maxBytes])
	for len(b) > 0 && !utf8.Valid(b) {
		b = b[:len(b)-1]
	}
	return string(b)
}
