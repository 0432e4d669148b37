package protocols

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/textproto"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"
)

const defaultFTPPort = 21

type FTPOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	// TLS switches the control and data connections to explicit FTPS (AUTH TLS).
	TLS                bool
	InsecureSkipVerify bool
	DisableEPSV        bool
	Timeout            time.Duration
}

// ftpConn is the subset of *ftp.ServerConn the adapter drives.
type ftpConn interface {
	List(path string) ([]*ftp.Entry, error)
	Stor(path string, r io.Reader) error
	MakeDir(path string) error
	Delete(path string) error
	RemoveDir(path string) error
	Quit() error
}

var _ ftpConn = (*ftp.ServerConn)(nil)

// ftpClient adds the composite operations FTP lacks (recursive mkdir, tree
// upload and recursive removal) on top of a raw session. All paths it takes
// are already resolved.
type ftpClient struct {
	conn ftpConn
}

// Find lists the parent of fullPath and scans it for the base name.
func (c *ftpClient) Find(fullPath string) (*Stat, error) {
	if isRootPath(fullPath) {
		return &Stat{Name: path.Base(fullPath), IsDir: true}, nil
	}
	parent, base := splitPath(fullPath)
	entries, err := c.conn.List(parent)
	if err != nil {
		if isFTPNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "list %s", parent)
	}
	for _, entry := range entries {
		if entry.Name == base {
			return statFromEntry(entry), nil
		}
	}
	return nil, nil
}

// MakeDir creates a single directory. A directory that is already there is not an error.
func (c *ftpClient) MakeDir(dir string) error {
	err := c.conn.MakeDir(dir)
	if err == nil {
		return nil
	}
	if st, findErr := c.Find(dir); findErr == nil && st != nil && st.IsDir {
		return nil
	}
	return errors.Wrapf(err, "make dir %s", dir)
}

// EnsureDir creates dir and any missing ancestors.
func (c *ftpClient) EnsureDir(dir string) error {
	for _, d := range ancestors(dir) {
		if err := c.MakeDir(d); err != nil {
			return err
		}
	}
	return nil
}

func (c *ftpClient) Upload(r io.Reader, fullPath string) error {
	return errors.Wrapf(c.conn.Stor(fullPath, r), "store %s", fullPath)
}

func (c *ftpClient) UploadFrom(local *LocalFileSystem, localPath, fullPath string) error {
	f, err := local.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Upload(f, fullPath)
}

// UploadFromDir creates remoteDir and copies the contents of localDir into it.
func (c *ftpClient) UploadFromDir(local *LocalFileSystem, localDir, remoteDir string) error {
	if err := c.EnsureDir(remoteDir); err != nil {
		return err
	}
	return local.Walk(localDir, func(localPath, rel string, info os.FileInfo) error {
		target := path.Join(remoteDir, rel)
		if info.IsDir() {
			return c.MakeDir(target)
		}
		return c.UploadFrom(local, localPath, target)
	})
}

func (c *ftpClient) Remove(fullPath string) error {
	return errors.Wrapf(c.conn.Delete(fullPath), "delete %s", fullPath)
}

// RemoveDir deletes dir and everything below it using absolute paths, so the
// session's working directory is never changed.
func (c *ftpClient) RemoveDir(dir string) error {
	entries, err := c.conn.List(dir)
	if err != nil {
		return errors.Wrapf(err, "list %s", dir)
	}
	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		child := path.Join(dir, entry.Name)
		if entry.Type == ftp.EntryTypeFolder {
			err = c.RemoveDir(child)
		} else {
			err = c.Remove(child)
		}
		if err != nil {
			return err
		}
	}
	return errors.Wrapf(c.conn.RemoveDir(dir), "remove dir %s", dir)
}

func (c *ftpClient) Close() error {
	return c.conn.Quit()
}

// FTPRemote is a Remote backed by an FTP or explicit FTPS server.
type FTPRemote struct {
	PathResolver
	opts   FTPOptions
	o      options
	dial   func(ctx context.Context) (ftpConn, error)
	client *ftpClient
}

var _ Remote = (*FTPRemote)(nil)

func NewFTPRemote(opts FTPOptions, prefix string, opt ...Option) *FTPRemote {
	if opts.Port == 0 {
		opts.Port = defaultFTPPort
	}
	if opts.User == "" {
		opts.User = "anonymous"
		if opts.Password == "" {
			opts.Password = "guest"
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	protocol := "ftp"
	if opts.TLS {
		protocol = "ftps"
	}
	r := &FTPRemote{
		PathResolver: NewPathResolver(prefix),
		opts:         opts,
		o:            newOptions(protocol, opt),
	}
	r.dial = r.dialFTP
	return r
}

func (r *FTPRemote) dialFTP(ctx context.Context) (ftpConn, error) {
	addr := net.JoinHostPort(r.opts.Host, strconv.Itoa(r.opts.Port))
	dialOpts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(r.opts.Timeout),
		ftp.DialWithDisabledEPSV(r.opts.DisableEPSV),
	}
	if r.opts.TLS {
		dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName:         r.opts.Host,
			InsecureSkipVerify: r.opts.InsecureSkipVerify,
		}))
	}
	c, err := ftp.Dial(addr, dialOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	if err := c.Login(r.opts.User, r.opts.Password); err != nil {
		c.Quit()
		return nil, errors.Wrapf(err, "login to %s as %s", addr, r.opts.User)
	}
	return c, nil
}

func (r *FTPRemote) Connect(ctx context.Context) (Remote, error) {
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
	conn, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	r.client = &ftpClient{conn: conn}
	r.o.logger.WithField("host", r.opts.Host).Debug("connected")
	return r, nil
}

func (r *FTPRemote) Disconnect() error {
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return errors.Wrap(err, "quit ftp session")
}

func (r *FTPRemote) session() (*ftpClient, error) {
	if r.client == nil {
		return nil, ErrNotConnected
	}
	return r.client, nil
}

func (r *FTPRemote) UploadDir(localPath, remotePath string) error {
	isDir, err := r.o.local.IsDir(localPath)
	if err != nil {
		return err
	}
	if !isDir {
		return r.UploadFile(localPath, remotePath)
	}
	c, err := r.session()
	if err != nil {
		return err
	}
	fullPath := r.CreatePath(remotePath)
	if err := c.EnsureDir(path.Dir(fullPath)); err != nil {
		return err
	}
	r.o.logger.WithField("path", fullPath).Debug("uploading directory")
	return c.UploadFromDir(r.o.local, localPath, fullPath)
}

func (r *FTPRemote) UploadFile(localPath, remotePath string) error {
	isDir, err := r.o.local.IsDir(localPath)
	if err != nil {
		return err
	}
	if isDir {
		return r.UploadDir(localPath, remotePath)
	}
	c, err := r.session()
	if err != nil {
		return err
	}
	fullPath := r.CreatePath(remotePath)
	probe := func(p string) (entryKind, error) {
		st, err := c.Find(p)
		return kindOf(st), err
	}
	if err := ensureParent(fullPath, probe, c.EnsureDir); err != nil {
		return err
	}
	r.o.logger.WithField("path", fullPath).Debug("uploading file")
	return c.UploadFrom(r.o.local, localPath, fullPath)
}

func (r *FTPRemote) CreateFile(remotePath, content string) error {
	c, err := r.session()
	if err != nil {
		return err
	}
	return c.Upload(strings.NewReader(content), r.CreatePath(remotePath))
}

func (r *FTPRemote) CreateDir(remotePath string, recursive bool) error {
	c, err := r.session()
	if err != nil {
		return err
	}
	fullPath := r.CreatePath(remotePath)
	if recursive {
		return c.EnsureDir(fullPath)
	}
	return errors.Wrapf(c.conn.MakeDir(fullPath), "make dir %s", fullPath)
}

func (r *FTPRemote) Exists(remotePath string) (bool, error) {
	st, err := r.Stat(remotePath)
	return st != nil, err
}

func (r *FTPRemote) Stat(remotePath string) (*Stat, error) {
	c, err := r.session()
	if err != nil {
		return nil, err
	}
	return c.Find(r.CreatePath(remotePath))
}

func (r *FTPRemote) Delete(remotePath string, dir bool) DeleteResult {
	fullPath := r.CreatePath(remotePath)
	res := DeleteResult{Path: fullPath, Dir: dir}
	c, err := r.session()
	switch {
	case err != nil:
		res.Err = err
	case dir:
		res.Err = c.RemoveDir(fullPath)
	default:
		res.Err = c.Remove(fullPath)
	}
	return logDeleteResult(r.o.logger, res)
}

func (r *FTPRemote) DeleteDir(remotePath string) DeleteResult {
	return r.Delete(remotePath, true)
}

func statFromEntry(entry *ftp.Entry) *Stat {
	isDir := entry.Type == ftp.EntryTypeFolder
	return &Stat{
		Name:   entry.Name,
		IsDir:  isDir,
		IsFile: !isDir,
		Raw:    entry,
	}
}

// isFTPNotFound reports a 550 reply, which servers send when listing a
// directory that does not exist.
func isFTPNotFound(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable
}
