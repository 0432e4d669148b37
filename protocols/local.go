package protocols

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// LocalFileSystem is the local side of every upload: it answers whether a
// path is a file or a directory and hands out readers for file content.
type LocalFileSystem struct {
	fs afero.Fs
}

func NewLocalFileSystem(fs afero.Fs) *LocalFileSystem {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &LocalFileSystem{fs: fs}
}

func (l *LocalFileSystem) IsDir(localPath string) (bool, error) {
	info, err := l.fs.Stat(localPath)
	if err != nil {
		return false, errors.Wrapf(err, "stat local path %s", localPath)
	}
	return info.IsDir(), nil
}

func (l *LocalFileSystem) Open(localPath string) (afero.File, error) {
	f, err := l.fs.Open(localPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open local file %s", localPath)
	}
	return f, nil
}

// Walk visits every entry below root (root itself excluded) in lexical order,
// so a directory is always seen before its contents. rel is slash separated
// and relative to root.
func (l *LocalFileSystem) Walk(root string, fn func(localPath, rel string, info os.FileInfo) error) error {
	return afero.Walk(l.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		return fn(p, filepath.ToSlash(rel), info)
	})
}

// Option configures an adapter.
type Option func(*options)

type options struct {
	logger logrus.FieldLogger
	local  *LocalFileSystem
}

// WithLogger sets the sink for debug output and suppressed delete failures.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLocalFs replaces the local filesystem uploads are read from.
func WithLocalFs(fs afero.Fs) Option {
	return func(o *options) {
		o.local = NewLocalFileSystem(fs)
	}
}

func newOptions(protocol string, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logrus.StandardLogger()
	}
	o.logger = o.logger.WithField("protocol", protocol)
	if o.local == nil {
		o.local = NewLocalFileSystem(nil)
	}
	return o
}

// logDeleteResult sends a failed delete to the diagnostic sink.
func logDeleteResult(logger logrus.FieldLogger, res DeleteResult) DeleteResult {
	if res.Failed() {
		logger.WithError(res.Err).WithFields(logrus.Fields{
			"path": res.Path,
			"dir":  res.Dir,
		}).Warn("failed to delete file/dir")
	}
	return res
}
