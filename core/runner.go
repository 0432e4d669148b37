package core

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"remoteup/config"
)

type Runner struct {
	Config          *config.Config
	TransferManager *TransferManager
	Cron            *cron.Cron
	Logger          logrus.FieldLogger
	wg              sync.WaitGroup
}

func NewRunner(cfg *config.Config, tm *TransferManager, logger logrus.FieldLogger) *Runner {
	return &Runner{
		Config:          cfg,
		TransferManager: tm,
		Cron:            cron.New(),
		Logger:          logger,
	}
}

// Start schedules every job and runs each once right away. A job whose
// previous run is still going is skipped. Jobs with an invalid cron spec are
// reported in the returned error; the others are scheduled anyway.
func (r *Runner) Start(ctx context.Context) error {
	var errs error
	chain := cron.NewChain(cron.SkipIfStillRunning(cron.PrintfLogger(r.Logger)))
	for _, job := range r.Config.Jobs {
		job := job
		wrapped := chain.Then(cron.FuncJob(func() {
			// RunJob records and logs its own outcome
			_ = r.TransferManager.RunJob(ctx, job)
		}))
		if _, err := r.Cron.AddJob(job.Cron, wrapped); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "schedule job %s", job.Name))
			continue
		}
		r.Logger.WithField("job", job.Name).WithField("cron", job.Cron).Info("scheduled job")

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			wrapped.Run()
		}()
	}
	r.Cron.Start()
	return errs
}

// Stop halts scheduling and waits for running jobs to finish.
func (r *Runner) Stop() {
	<-r.Cron.Stop().Done()
	r.wg.Wait()
}
