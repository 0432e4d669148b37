package protocols

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"go.uber.org/multierr"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultSFTPPort = 22

type SFTPOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	// PrivateKey is a PEM encoded key, decrypted with Passphrase when set.
	PrivateKey []byte
	Passphrase string
	// KnownHostsFile enables host key verification. Without it any host key is accepted.
	KnownHostsFile string
	Timeout        time.Duration
}

func (o SFTPOptions) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if len(o.PrivateKey) > 0 {
		var (
			signer ssh.Signer
			err    error
		)
		if o.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(o.PrivateKey, []byte(o.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(o.PrivateKey)
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse private key")
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if o.Password != "" {
		auth = append(auth, ssh.Password(o.Password))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if o.KnownHostsFile != "" {
		cb, err := knownhosts.New(o.KnownHostsFile)
		if err != nil {
			return nil, errors.Wrapf(err, "load known hosts %s", o.KnownHostsFile)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            o.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         o.Timeout,
	}, nil
}

// SFTPRemote is a Remote backed by an SFTP subsystem over SSH.
type SFTPRemote struct {
	PathResolver
	opts SFTPOptions
	o    options
	dial func(ctx context.Context) (*sftp.Client, io.Closer, error)

	client    *sftp.Client
	transport io.Closer
}

var _ Remote = (*SFTPRemote)(nil)

func NewSFTPRemote(opts SFTPOptions, prefix string, opt ...Option) *SFTPRemote {
	if opts.Port == 0 {
		opts.Port = defaultSFTPPort
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	r := &SFTPRemote{
		PathResolver: NewPathResolver(prefix),
		opts:         opts,
		o:            newOptions("sftp", opt),
	}
	r.dial = r.dialSSH
	return r
}

func (r *SFTPRemote) dialSSH(ctx context.Context) (*sftp.Client, io.Closer, error) {
	config, err := r.opts.clientConfig()
	if err != nil {
		return nil, nil, err
	}

	addr := net.JoinHostPort(r.opts.Host, strconv.Itoa(r.opts.Port))
	dialer := net.Dialer{Timeout: r.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "dial %s", addr)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, nil, errors.Wrapf(err, "ssh handshake with %s", addr)
	}
	sshConn := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, nil, errors.Wrap(err, "start sftp subsystem")
	}
	return client, sshConn, nil
}

func (r *SFTPRemote) Connect(ctx context.Context) (Remote, error) {
	if r.client != nil {
		r.Disconnect()
	}
	client, transport, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	r.client = client
	r.transport = transport
	r.o.logger.WithField("host", r.opts.Host).Debug("connected")
	return r, nil
}

func (r *SFTPRemote) Disconnect() error {
	var err error
	if r.client != nil {
		err = multierr.Append(err, r.client.Close())
	}
	if r.transport != nil {
		err = multierr.Append(err, r.transport.Close())
	}
	r.client = nil
	r.transport = nil
	return errors.Wrap(err, "close sftp session")
}

func (r *SFTPRemote) session() (*sftp.Client, error) {
	if r.client == nil {
		return nil, ErrNotConnected
	}
	return r.client, nil
}

// probe stats fullPath and reports whether it is absent, a directory or a file.
func (r *SFTPRemote) probe(fullPath string) (entryKind, error) {
	info, err := r.client.Stat(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return kindAbsent, nil
		}
		return kindAbsent, errors.Wrapf(err, "stat %s", fullPath)
	}
	if info.IsDir() {
		return kindDir, nil
	}
	return kindFile, nil
}

func (r *SFTPRemote) mkdirAll(dir string) error {
	return errors.Wrapf(r.client.MkdirAll(dir), "make dir %s", dir)
}

func (r *SFTPRemote) put(src io.Reader, fullPath string) error {
	f, err := r.client.Create(fullPath)
	if err != nil {
		return errors.Wrapf(err, "create %s", fullPath)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", fullPath)
	}
	return errors.Wrapf(f.Close(), "close %s", fullPath)
}

func (r *SFTPRemote) putLocal(localPath, fullPath string) error {
	src, err := r.o.local.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()
	return r.put(src, fullPath)
}

func (r *SFTPRemote) UploadDir(localPath, remotePath string) error {
	isDir, err := r.o.local.IsDir(localPath)
	if err != nil {
		return err
	}
	if !isDir {
		return r.UploadFile(localPath, remotePath)
	}
	if _, err := r.session(); err != nil {
		return err
	}
	fullPath := r.CreatePath(remotePath)
	if err := r.mkdirAll(fullPath); err != nil {
		return err
	}
	r.o.logger.WithField("path", fullPath).Debug("uploading directory")
	return r.o.local.Walk(localPath, func(local, rel string, info os.FileInfo) error {
		target := path.Join(fullPath, rel)
		if info.IsDir() {
			return r.mkdirAll(target)
		}
		return r.putLocal(local, target)
	})
}

func (r *SFTPRemote) UploadFile(localPath, remotePath string) error {
	isDir, err := r.o.local.IsDir(localPath)
	if err != nil {
		return err
	}
	if isDir {
		return r.UploadDir(localPath, remotePath)
	}
	if _, err := r.session(); err != nil {
		return err
	}
	fullPath := r.CreatePath(remotePath)
	if err := ensureParent(fullPath, r.probe, r.mkdirAll); err != nil {
		return err
	}
	r.o.logger.WithField("path", fullPath).Debug("uploading file")
	return r.putLocal(localPath, fullPath)
}

func (r *SFTPRemote) CreateFile(remotePath, content string) error {
	if _, err := r.session(); err != nil {
		return err
	}
	return r.put(strings.NewReader(content), r.CreatePath(remotePath))
}

func (r *SFTPRemote) CreateDir(remotePath string, recursive bool) error {
	client, err := r.session()
	if err != nil {
		return err
	}
	fullPath := r.CreatePath(remotePath)
	if recursive {
		return r.mkdirAll(fullPath)
	}
	return errors.Wrapf(client.Mkdir(fullPath), "make dir %s", fullPath)
}

func (r *SFTPRemote) Exists(remotePath string) (bool, error) {
	if _, err := r.session(); err != nil {
		return false, err
	}
	kind, err := r.probe(r.CreatePath(remotePath))
	return kind != kindAbsent, err
}

func (r *SFTPRemote) Stat(remotePath string) (*Stat, error) {
	client, err := r.session()
	if err != nil {
		return nil, err
	}
	fullPath := r.CreatePath(remotePath)
	info, err := client.Stat(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "stat %s", fullPath)
	}
	return statFromFileInfo(path.Base(fullPath), info), nil
}

// removeAll deletes dir depth first.
func (r *SFTPRemote) removeAll(dir string) error {
	entries, err := r.client.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "read dir %s", dir)
	}
	for _, entry := range entries {
		child := path.Join(dir, entry.Name())
		if entry.IsDir() {
			err = r.removeAll(child)
		} else {
			err = errors.Wrapf(r.client.Remove(child), "remove %s", child)
		}
		if err != nil {
			return err
		}
	}
	return errors.Wrapf(r.client.RemoveDirectory(dir), "remove dir %s", dir)
}

func (r *SFTPRemote) Delete(remotePath string, dir bool) DeleteResult {
	fullPath := r.CreatePath(remotePath)
	res := DeleteResult{Path: fullPath, Dir: dir}
	client, err := r.session()
	switch {
	case err != nil:
		res.Err = err
	case dir:
		res.Err = r.removeAll(fullPath)
	default:
		res.Err = errors.Wrapf(client.Remove(fullPath), "remove %s", fullPath)
	}
	return logDeleteResult(r.o.logger, res)
}

func (r *SFTPRemote) DeleteDir(remotePath string) DeleteResult {
	return r.Delete(remotePath, true)
}

func statFromFileInfo(name string, info os.FileInfo) *Stat {
	return &Stat{
		Name:   name,
		IsDir:  info.IsDir(),
		IsFile: !info.IsDir(),
		Raw:    info,
	}
}
