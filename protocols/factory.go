package protocols

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Options carries the connection settings of every protocol. Fields a
// protocol has no use for are ignored.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string

	// sftp
	PrivateKey     []byte
	Passphrase     string
	KnownHostsFile string

	// ftp/ftps
	InsecureSkipVerify bool
	DisableEPSV        bool

	Timeout time.Duration
}

// Protocols lists the names accepted by New.
var Protocols = []string{"ftp", "ftps", "sftp"}

// New returns an unconnected Remote for protocol, rooted at prefix.
func New(protocol string, opts Options, prefix string, opt ...Option) (Remote, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "ftp", "ftps":
		return NewFTPRemote(FTPOptions{
			Host:               opts.Host,
			Port:               opts.Port,
			User:               opts.User,
			Password:           opts.Password,
			TLS:                strings.EqualFold(strings.TrimSpace(protocol), "ftps"),
			InsecureSkipVerify: opts.InsecureSkipVerify,
			DisableEPSV:        opts.DisableEPSV,
			Timeout:            opts.Timeout,
		}, prefix, opt...), nil
	case "sftp":
		return NewSFTPRemote(SFTPOptions{
			Host:           opts.Host,
			Port:           opts.Port,
			User:           opts.User,
			Password:       opts.Password,
			PrivateKey:     opts.PrivateKey,
			Passphrase:     opts.Passphrase,
			KnownHostsFile: opts.KnownHostsFile,
			Timeout:        opts.Timeout,
		}, prefix, opt...), nil
	default:
		return nil, errors.Wrapf(ErrNotImplemented, "protocol %q (supported: %s)", protocol, strings.Join(Protocols, ", "))
	}
}
