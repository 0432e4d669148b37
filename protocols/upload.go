package protocols

import (
	"path"

	"github.com/pkg/errors"
)

type entryKind int

const (
	kindAbsent entryKind = iota
	kindDir
	kindFile
)

func kindOf(st *Stat) entryKind {
	switch {
	case st == nil:
		return kindAbsent
	case st.IsDir:
		return kindDir
	default:
		return kindFile
	}
}

// ensureParent makes sure the directory holding fullPath exists before a file
// is written there. A parent that exists as a file aborts the upload. A parent
// created here is left in place if the transfer later fails.
func ensureParent(fullPath string, probe func(string) (entryKind, error), mkdirAll func(string) error) error {
	parent := path.Dir(fullPath)
	kind, err := probe(parent)
	if err != nil {
		return err
	}
	switch kind {
	case kindDir:
		return nil
	case kindFile:
		return errors.Wrapf(ErrInvalidParent, "upload to %s", fullPath)
	default:
		return mkdirAll(parent)
	}
}
