package cmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"remoteup/config"
	"remoteup/core"
	"remoteup/protocols"
)

type rootOptions struct {
	configPath string
	logLevel   string
	newDialer  func(logrus.FieldLogger) core.Dialer
}

// NewRoot returns the remoteup command tree.
func NewRoot() *cobra.Command {
	return newRoot(&rootOptions{newDialer: core.NewDialer})
}

func newRoot(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "remoteup",
		Short:        "Upload, inspect and delete files on FTP and SFTP servers",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.toml", "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the log level from the config file")
	cmd.AddCommand(
		newUploadCmd(opts),
		newMkdirCmd(opts),
		newPutCmd(opts),
		newStatCmd(opts),
		newRmCmd(opts),
		newRunCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "load config %s", o.configPath)
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger, err := core.NewLogger(level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// withRemote connects to the named remote, runs fn and disconnects.
func (o *rootOptions) withRemote(ctx context.Context, name string, fn func(protocols.Remote) error) (err error) {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}
	rc, ok := cfg.Remote(name)
	if !ok {
		return errors.Errorf("no remote named %q in %s", name, o.configPath)
	}
	remote, err := o.newDialer(logger).Dial(ctx, rc)
	if err != nil {
		return errors.Wrapf(err, "connect to %s", name)
	}
	defer func() {
		err = multierr.Append(err, remote.Disconnect())
	}()
	return fn(remote)
}
