package core

import (
	"context"
	"path"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"remoteup/config"
	"remoteup/protocols"
)

type TransferManager struct {
	Config         *config.Config
	Dialer         Dialer
	HistoryManager *HistoryManager
	Logger         logrus.FieldLogger
	now            func() time.Time
}

func NewTransferManager(cfg *config.Config, dialer Dialer, hm *HistoryManager, logger logrus.FieldLogger) *TransferManager {
	return &TransferManager{
		Config:         cfg,
		Dialer:         dialer,
		HistoryManager: hm,
		Logger:         logger,
		now:            time.Now,
	}
}

// RunJob connects to the job's remote, optionally clears the target, uploads
// the local path and writes the marker file. Each run uses its own session.
func (tm *TransferManager) RunJob(ctx context.Context, job config.Job) (err error) {
	log := tm.Logger.WithField("job", job.Name)
	started := tm.now()
	log.Info("starting job")

	defer func() {
		rec := RunRecord{Started: started, Duration: tm.now().Sub(started), Status: StatusSucceeded}
		if err != nil {
			rec.Status = StatusFailed
			rec.Error = err.Error()
			log.WithError(err).Error("job failed")
		} else {
			log.WithField("duration", rec.Duration).Info("finished job")
		}
		tm.HistoryManager.Record(job.Name, rec)
	}()

	rc, ok := tm.Config.Remote(job.Remote)
	if !ok {
		return errors.Errorf("unknown remote %q", job.Remote)
	}
	remote, err := tm.Dialer.Dial(ctx, rc)
	if err != nil {
		return errors.Wrapf(err, "connect to %s", rc.Name)
	}
	defer func() {
		err = multierr.Append(err, remote.Disconnect())
	}()

	if job.Clean {
		tm.clean(log, remote, job.RemotePath)
	}

	if err := remote.UploadFile(job.LocalPath, job.RemotePath); err != nil {
		return errors.Wrapf(err, "upload %s", job.LocalPath)
	}
	log.WithField("path", remote.CreatePath(job.RemotePath)).Info("uploaded")

	if job.Marker != "" {
		marker := path.Join(path.Dir(job.RemotePath), job.Marker)
		if err := remote.CreateFile(marker, tm.now().UTC().Format(time.RFC3339)); err != nil {
			return errors.Wrapf(err, "write marker %s", marker)
		}
	}
	return nil
}

// clean removes whatever is at remotePath. Failures are left to the remote's
// own diagnostics; the upload overwrites what it can.
func (tm *TransferManager) clean(log logrus.FieldLogger, remote protocols.Remote, remotePath string) {
	st, err := remote.Stat(remotePath)
	if err != nil {
		log.WithError(err).Warn("cannot stat upload target, skipping clean")
		return
	}
	if st == nil {
		return
	}
	if res := remote.Delete(remotePath, st.IsDir); !res.Failed() {
		log.WithField("path", res.Path).Info("removed previous upload")
	}
}
