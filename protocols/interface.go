package protocols

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrNotImplemented is returned when no adapter provides the requested protocol.
	ErrNotImplemented = errors.New("not implemented")
	// ErrInvalidParent is returned by UploadFile when the remote parent exists but is not a directory.
	ErrInvalidParent = errors.New("parent is not a directory")
	// ErrNotConnected is returned by operations issued before Connect or after Disconnect.
	ErrNotConnected = errors.New("remote is not connected")
)

// Stat is the normalized description of a remote entry.
// IsDir and IsFile are never both set, and never both unset.
type Stat struct {
	Name   string
	IsDir  bool
	IsFile bool
	// Raw holds the backend's own stat value (*ftp.Entry or os.FileInfo).
	Raw any
}

// DeleteResult reports the outcome of a best-effort delete.
// A failed delete has already been logged; callers may ignore it.
type DeleteResult struct {
	Path string
	Dir  bool
	Err  error
}

// Failed reports whether the underlying delete returned an error.
func (r DeleteResult) Failed() bool {
	return r.Err != nil
}

// Remote is the operation set shared by every backend.
//
// A Remote owns a single session and is not safe for concurrent use: issue one
// operation at a time, and use separate Remotes for parallel transfers.
type Remote interface {
	// Connect establishes the session. It must be called before any path operation.
	Connect(ctx context.Context) (Remote, error)
	// Disconnect tears the session down. Connect may be called again afterwards.
	Disconnect() error

	// UploadFile copies a local file to remotePath, creating the remote parent
	// directory if needed. A local directory is handed to UploadDir.
	UploadFile(localPath, remotePath string) error
	// UploadDir copies a local directory tree to remotePath. A local file is
	// handed to UploadFile.
	UploadDir(localPath, remotePath string) error
	// CreateFile creates or overwrites remotePath with content.
	CreateFile(remotePath, content string) error
	// CreateDir creates a directory, and its missing ancestors when recursive is set.
	CreateDir(remotePath string, recursive bool) error

	// Exists reports whether Stat would return an entry.
	Exists(remotePath string) (bool, error)
	// Stat returns nil and no error when remotePath does not exist.
	Stat(remotePath string) (*Stat, error)

	// Delete removes a file, or a directory and its contents when dir is set.
	// It never returns an error; failures are logged and reported in the result.
	Delete(remotePath string, dir bool) DeleteResult
	// DeleteDir is Delete(remotePath, true).
	DeleteDir(remotePath string) DeleteResult

	SetPathPrefix(prefix string)
	CreatePath(p string) string
}
