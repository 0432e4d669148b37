package core

import (
	"context"

	"github.com/sirupsen/logrus"

	"remoteup/config"
	"remoteup/protocols"
)

// Dialer returns a connected Remote for a configured server.
type Dialer interface {
	Dial(ctx context.Context, remote config.Remote) (protocols.Remote, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, remote config.Remote) (protocols.Remote, error)

func (f DialerFunc) Dial(ctx context.Context, remote config.Remote) (protocols.Remote, error) {
	return f(ctx, remote)
}

type protocolDialer struct {
	logger logrus.FieldLogger
}

// NewDialer builds adapters with protocols.New and connects them.
func NewDialer(logger logrus.FieldLogger) Dialer {
	return &protocolDialer{logger: logger}
}

func (d *protocolDialer) Dial(ctx context.Context, rc config.Remote) (protocols.Remote, error) {
	opts, err := rc.Options()
	if err != nil {
		return nil, err
	}
	r, err := protocols.New(rc.Protocol, opts, rc.Prefix, protocols.WithLogger(d.logger.WithField("remote", rc.Name)))
	if err != nil {
		return nil, err
	}
	return r.Connect(ctx)
}
