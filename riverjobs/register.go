package riverjobs

import (
	"fmt"

	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"

	pgstore "github.com/openlearn/sessionkit/storage/postgres"
)

// RegisterPurgeExpiredStateWorker registers the purge worker into a River
// workers registry.
func RegisterPurgeExpiredStateWorker(ws *river.Workers, kv *pgstore.KV) {
	river.AddWorker(ws, NewPurgeExpiredStateWorker(kv))
}

// AddPurgeExpiredStatePeriodicJob adds a periodic job that enqueues the purge
// on a cron schedule.
//
// Example cron: "*/10 * * * *" (every ten minutes).
func AddPurgeExpiredStatePeriodicJob[T any](client *river.Client[T], cronSpec string, args PurgeExpiredStateArgs, runOnStart bool) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronSpec)
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", cronSpec, err)
	}
	opts := args.InsertOpts()
	_ = client.PeriodicJobs().Add(
		river.NewPeriodicJob(
			schedule,
			func() (river.JobArgs, *river.InsertOpts) { return args, &opts },
			&river.PeriodicJobOpts{RunOnStart: runOnStart},
		),
	)
	return nil
}
