package riverjobs

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"

	pgstore "github.com/openlearn/sessionkit/storage/postgres"
)

type PurgeExpiredStateArgs struct {
	BatchSize int `json:"batch_size,omitempty"`
}

func (PurgeExpiredStateArgs) Kind() string { return "sessionkit_purge_expired_state" }

func (args PurgeExpiredStateArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue: river.QueueDefault,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: time.Hour,
			ByQueue:  true,
		},
	}
}

// PurgeExpiredStateWorker sweeps expired ephemeral rows (stale CSRF state,
// unconsumed bridge records) out of the Postgres store. Redis deployments
// don't need it; Redis expires keys natively.
type PurgeExpiredStateWorker struct {
	river.WorkerDefaults[PurgeExpiredStateArgs]
	kv *pgstore.KV
}

func NewPurgeExpiredStateWorker(kv *pgstore.KV) *PurgeExpiredStateWorker {
	return &PurgeExpiredStateWorker{kv: kv}
}

func (w *PurgeExpiredStateWorker) Timeout(*river.Job[PurgeExpiredStateArgs]) time.Duration {
	return time.Minute
}

func (w *PurgeExpiredStateWorker) Work(ctx context.Context, job *river.Job[PurgeExpiredStateArgs]) error {
	if w == nil || w.kv == nil {
		return errors.New("sessionkit purge: ephemeral store not configured")
	}
	batch := job.Args.BatchSize
	if batch <= 0 {
		batch = 500
	}
	for {
		n, err := w.kv.DeleteExpired(ctx, batch)
		if err != nil {
			return err
		}
		if n < int64(batch) {
			return nil
		}
	}
}
