package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/icodeforyou/pvsoiling/config"
	"github.com/icodeforyou/pvsoiling/days"
	"github.com/robfig/cron/v3"
)

type Tasks struct {
	cron            *cron.Cron
	cnfg            *config.AppConfig
	SyncTask        func()
	MaintenanceTask func()
}

func NewTasks(db MaintenanceStore, syncer SyncRunner, cnfg *config.AppConfig) *Tasks {
	logger := slog.Default().With("module", "tasks")
	return &Tasks{
		cron:            cron.New(cron.WithLocation(days.Location())),
		cnfg:            cnfg,
		SyncTask:        NewSyncTask(logger.With(slog.String("task", "sync")), syncer),
		MaintenanceTask: NewMaintenanceTask(logger.With(slog.String("task", "maintenance")), db, cnfg),
	}
}

// Validate checks the cron specs without scheduling anything.
func (t *Tasks) Validate() error {
	for _, spec := range []string{t.cnfg.Scheduler.GetRunAt(), t.cnfg.Scheduler.GetMaintenanceRunAt()} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid cron spec %q: %w", spec, err)
		}
	}
	return nil
}

func (t *Tasks) Run() {
	_, err := t.cron.AddFunc(t.cnfg.Scheduler.GetRunAt(), t.SyncTask)
	if err != nil {
		panic(err)
	}
	_, err = t.cron.AddFunc(t.cnfg.Scheduler.GetMaintenanceRunAt(), t.MaintenanceTask)
	if err != nil {
		panic(err)
	}
	t.cron.Start()
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}
