package core

import (
	"context"
	"fmt"

	"remoteup/protocols"
)

// fakeRemote records the calls a job makes.
type fakeRemote struct {
	protocols.PathResolver
	calls     []string
	stats     map[string]*protocols.Stat
	uploadErr error
	statErr   error
	content   map[string]string
}

func newFakeRemote(prefix string) *fakeRemote {
	return &fakeRemote{
		PathResolver: protocols.NewPathResolver(prefix),
		stats:        map[string]*protocols.Stat{},
		content:      map[string]string{},
	}
}

func (f *fakeRemote) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeRemote) Connect(context.Context) (protocols.Remote, error) {
	f.record("connect")
	return f, nil
}

func (f *fakeRemote) Disconnect() error {
	f.record("disconnect")
	return nil
}

func (f *fakeRemote) UploadFile(localPath, remotePath string) error {
	f.record("upload %s %s", localPath, remotePath)
	return f.uploadErr
}

func (f *fakeRemote) UploadDir(localPath, remotePath string) error {
	f.record("upload-dir %s %s", localPath, remotePath)
	return f.uploadErr
}

func (f *fakeRemote) CreateFile(remotePath, content string) error {
	f.record("create-file %s", remotePath)
	f.content[remotePath] = content
	return nil
}

func (f *fakeRemote) CreateDir(remotePath string, recursive bool) error {
	f.record("create-dir %s %t", remotePath, recursive)
	return nil
}

func (f *fakeRemote) Exists(remotePath string) (bool, error) {
	st, err := f.Stat(remotePath)
	return st != nil, err
}

func (f *fakeRemote) Stat(remotePath string) (*protocols.Stat, error) {
	f.record("stat %s", remotePath)
	return f.stats[remotePath], f.statErr
}

func (f *fakeRemote) Delete(remotePath string, dir bool) protocols.DeleteResult {
	f.record("delete %s %t", remotePath, dir)
	return protocols.DeleteResult{Path: f.CreatePath(remotePath), Dir: dir}
}

func (f *fakeRemote) DeleteDir(remotePath string) protocols.DeleteResult {
	return f.Delete(remotePath, true)
}
