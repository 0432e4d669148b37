package protocols

import (
	"context"
	"io"
	"net/textproto"
	"path"
	"sort"
	"testing"

	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFTP is an in-memory FTP session. Paths are resolved against "/".
type fakeFTP struct {
	dirs    map[string]bool
	files   map[string][]byte
	lists   int
	listErr error
	quit    bool
}

func newFakeFTP() *fakeFTP {
	return &fakeFTP{
		dirs:  map[string]bool{"/": true},
		files: map[string][]byte{},
	}
}

func unavailable(msg string) error {
	return &textproto.Error{Code: ftp.StatusFileUnavailable, Msg: msg}
}

func ftpPath(p string) string {
	return path.Join("/", p)
}

func (f *fakeFTP) List(p string) ([]*ftp.Entry, error) {
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	p = ftpPath(p)
	if data, ok := f.files[p]; ok {
		return []*ftp.Entry{{Name: path.Base(p), Type: ftp.EntryTypeFile, Size: uint64(len(data))}}, nil
	}
	if !f.dirs[p] {
		return nil, unavailable("No such file or directory")
	}
	entries := []*ftp.Entry{{Name: ".", Type: ftp.EntryTypeFolder}, {Name: "..", Type: ftp.EntryTypeFolder}}
	for d := range f.dirs {
		if d != p && path.Dir(d) == p {
			entries = append(entries, &ftp.Entry{Name: path.Base(d), Type: ftp.EntryTypeFolder})
		}
	}
	for name, data := range f.files {
		if path.Dir(name) == p {
			entries = append(entries, &ftp.Entry{Name: path.Base(name), Type: ftp.EntryTypeFile, Size: uint64(len(data))})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (f *fakeFTP) Stor(p string, r io.Reader) error {
	p = ftpPath(p)
	if !f.dirs[path.Dir(p)] || f.dirs[p] {
		return unavailable("Can't open that file")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.files[p] = data
	return nil
}

func (f *fakeFTP) MakeDir(p string) error {
	p = ftpPath(p)
	if _, isFile := f.files[p]; isFile || f.dirs[p] {
		return unavailable("File exists")
	}
	if !f.dirs[path.Dir(p)] {
		return unavailable("No such file or directory")
	}
	f.dirs[p] = true
	return nil
}

func (f *fakeFTP) Delete(p string) error {
	p = ftpPath(p)
	if _, ok := f.files[p]; !ok {
		return unavailable("No such file")
	}
	delete(f.files, p)
	return nil
}

func (f *fakeFTP) RemoveDir(p string) error {
	p = ftpPath(p)
	if !f.dirs[p] {
		return unavailable("No such directory")
	}
	for d := range f.dirs {
		if path.Dir(d) == p && d != p {
			return unavailable("Directory not empty")
		}
	}
	for name := range f.files {
		if path.Dir(name) == p {
			return unavailable("Directory not empty")
		}
	}
	delete(f.dirs, p)
	return nil
}

func (f *fakeFTP) Quit() error {
	f.quit = true
	return nil
}

// tree returns every file below root with its content, keyed by path relative to root.
func (f *fakeFTP) tree(root string) map[string]string {
	out := map[string]string{}
	for name, data := range f.files {
		if rel, ok := relUnder(root, name); ok {
			out[rel] = string(data)
		}
	}
	for d := range f.dirs {
		if rel, ok := relUnder(root, d); ok {
			out[rel+"/"] = ""
		}
	}
	return out
}

func relUnder(root, p string) (string, bool) {
	if len(p) <= len(root) || p[:len(root)] != root || p[len(root)] != '/' {
		return "", false
	}
	return p[len(root)+1:], true
}

func newLocalTree(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/src/tree/nested", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/src/c.txt", []byte("single"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/tree/one.txt", []byte("one"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/tree/nested/two.txt", []byte("two"), 0o644))
	return fs
}

func newTestFTPRemote(t *testing.T, opts ...Option) (*FTPRemote, *fakeFTP) {
	t.Helper()
	server := newFakeFTP()
	r := NewFTPRemote(FTPOptions{Host: "ftp.test"}, "/uploads", opts...)
	r.dial = func(context.Context) (ftpConn, error) {
		return server, nil
	}
	_, err := r.Connect(context.Background())
	require.NoError(t, err)
	return r, server
}

func TestFTPRemoteScenario(t *testing.T) {
	r, server := newTestFTPRemote(t)

	require.NoError(t, r.CreateDir("2024/reports", true))
	st, err := r.Stat("2024/reports")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.IsDir)
	assert.False(t, st.IsFile)
	assert.True(t, server.dirs["/uploads/2024/reports"])

	require.NoError(t, r.CreateFile("2024/reports/a.txt", "hello"))
	st, err = r.Stat("2024/reports/a.txt")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "a.txt", st.Name)
	assert.True(t, st.IsFile)
	assert.False(t, st.IsDir)
	assert.IsType(t, &ftp.Entry{}, st.Raw)
	assert.Equal(t, "hello", string(server.files["/uploads/2024/reports/a.txt"]))

	res := r.Delete("2024/reports", true)
	assert.False(t, res.Failed())
	exists, err := r.Exists("2024/reports")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.True(t, server.dirs["/uploads/2024"])
}

func TestFTPRemoteStatListsParent(t *testing.T) {
	r, server := newTestFTPRemote(t)
	require.NoError(t, r.CreateDir("docs", true))
	require.NoError(t, r.CreateFile("docs/readme.md", "# hi"))

	server.lists = 0
	st, err := r.Stat("docs/readme.md")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 1, server.lists)

	st, err = r.Stat("docs/missing.md")
	require.NoError(t, err)
	assert.Nil(t, st)

	// missing parent directory is reported as absence, not as an error
	st, err = r.Stat("nowhere/readme.md")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestFTPRemoteExistsMatchesStat(t *testing.T) {
	r, _ := newTestFTPRemote(t)
	require.NoError(t, r.CreateDir("a/b", true))
	require.NoError(t, r.CreateFile("a/file.txt", "x"))

	for _, p := range []string{"", "a", "a/b", "a/file.txt", "a/none", "none/none"} {
		st, err := r.Stat(p)
		require.NoError(t, err)
		exists, err := r.Exists(p)
		require.NoError(t, err)
		assert.Equal(t, st != nil, exists, p)
		if st != nil {
			assert.NotEqual(t, st.IsDir, st.IsFile, p)
		}
	}
}

func TestFTPRemoteUploadFileCreatesParent(t *testing.T) {
	r, server := newTestFTPRemote(t, WithLocalFs(newLocalTree(t)))

	require.NoError(t, r.UploadFile("/src/c.txt", "a/b/c.txt"))

	assert.True(t, server.dirs["/uploads/a"])
	assert.True(t, server.dirs["/uploads/a/b"])
	assert.Equal(t, "single", string(server.files["/uploads/a/b/c.txt"]))
}

func TestFTPRemoteUploadFileInvalidParent(t *testing.T) {
	r, server := newTestFTPRemote(t, WithLocalFs(newLocalTree(t)))
	require.NoError(t, r.CreateDir("a", true))
	require.NoError(t, r.CreateFile("a/b", "not a dir"))
	before := server.tree("/uploads")

	err := r.UploadFile("/src/c.txt", "a/b/c.txt")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParent)
	assert.Equal(t, before, server.tree("/uploads"))
}

func TestFTPRemoteUploadDispatchByLocalKind(t *testing.T) {
	r, server := newTestFTPRemote(t, WithLocalFs(newLocalTree(t)))

	require.NoError(t, r.UploadFile("/src/tree", "via-file"))
	require.NoError(t, r.UploadDir("/src/tree", "via-dir"))
	assert.Equal(t, map[string]string{
		"nested/":        "",
		"nested/two.txt": "two",
		"one.txt":        "one",
	}, server.tree("/uploads/via-dir"))
	assert.Equal(t, server.tree("/uploads/via-dir"), server.tree("/uploads/via-file"))

	require.NoError(t, r.UploadDir("/src/c.txt", "single/c.txt"))
	assert.Equal(t, "single", string(server.files["/uploads/single/c.txt"]))
}

func TestFTPRemoteDeleteNeverFails(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r, server := newTestFTPRemote(t, WithLogger(logger))
	require.NoError(t, r.CreateDir("full", true))
	require.NoError(t, r.CreateFile("full/a.txt", "a"))

	res := r.Delete("missing.txt", false)
	assert.True(t, res.Failed())
	assert.Equal(t, "/uploads/missing.txt", res.Path)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "failed to delete file/dir", hook.LastEntry().Message)
	assert.Equal(t, "/uploads/missing.txt", hook.LastEntry().Data["path"])

	res = r.Delete("full", false)
	assert.True(t, res.Failed())
	assert.True(t, server.dirs["/uploads/full"])

	res = r.DeleteDir("missing-dir")
	assert.True(t, res.Failed())
	assert.True(t, res.Dir)
	assert.Len(t, hook.AllEntries(), 3)

	hook.Reset()
	res = r.DeleteDir("full")
	assert.False(t, res.Failed())
	assert.False(t, server.dirs["/uploads/full"])
	assert.Empty(t, hook.AllEntries())
}

func TestFTPRemoteBackendErrorsPropagate(t *testing.T) {
	r, server := newTestFTPRemote(t)
	server.listErr = errors.New("connection reset")

	_, err := r.Stat("a.txt")
	require.Error(t, err)
	assert.Equal(t, server.listErr, errors.Cause(err))

	_, err = r.Exists("a.txt")
	require.Error(t, err)
}

func TestFTPRemoteCreateDirNonRecursive(t *testing.T) {
	r, server := newTestFTPRemote(t)

	require.Error(t, r.CreateDir("x/y", false))
	require.NoError(t, r.CreateDir("x", true))
	require.NoError(t, r.CreateDir("x/y", false))
	assert.True(t, server.dirs["/uploads/x/y"])
	// existing directories are fine when creating recursively
	require.NoError(t, r.CreateDir("x/y", true))
}

func TestFTPRemotePathPrefixChange(t *testing.T) {
	r, server := newTestFTPRemote(t)
	require.NoError(t, r.CreateDir("d", true))

	r.SetPathPrefix("/archive")
	require.NoError(t, r.CreateDir("d", true))

	assert.True(t, server.dirs["/uploads/d"])
	assert.True(t, server.dirs["/archive/d"])
}

func TestFTPRemoteNotConnected(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := NewFTPRemote(FTPOptions{Host: "ftp.test"}, "", WithLogger(logger))

	_, err := r.Stat("a")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, r.CreateFile("a", "x"), ErrNotConnected)

	res := r.Delete("a", false)
	assert.ErrorIs(t, res.Err, ErrNotConnected)
	assert.Len(t, hook.AllEntries(), 1)
	assert.NoError(t, r.Disconnect())
}

func TestFTPRemoteDisconnect(t *testing.T) {
	r, server := newTestFTPRemote(t)

	require.NoError(t, r.Disconnect())
	assert.True(t, server.quit)

	_, err := r.Exists("a")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = r.Connect(context.Background())
	require.NoError(t, err)
	_, err = r.Exists("a")
	assert.NoError(t, err)
}

func TestNewFTPRemoteDefaults(t *testing.T) {
	r := NewFTPRemote(FTPOptions{Host: "h"}, "")
	assert.Equal(t, 21, r.opts.Port)
	assert.Equal(t, "anonymous", r.opts.User)
	assert.Equal(t, "guest", r.opts.Password)
	assert.NotZero(t, r.opts.Timeout)
}
