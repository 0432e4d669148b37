package protocols

import "path"

// PathResolver joins caller paths under a root prefix using forward-slash
// semantics, whatever the host OS.
type PathResolver struct {
	prefix string
}

// NewPathResolver returns a resolver rooted at prefix.
func NewPathResolver(prefix string) PathResolver {
	return PathResolver{prefix: prefix}
}

func (r *PathResolver) SetPathPrefix(prefix string) {
	r.prefix = prefix
}

func (r *PathResolver) PathPrefix() string {
	return r.prefix
}

// CreatePath returns the cleaned join of the prefix and p. An input that already
// carries the prefix is prefixed again.
func (r *PathResolver) CreatePath(p string) string {
	return path.Join(r.prefix, p)
}

// splitPath returns the parent directory and base name of a resolved path.
func splitPath(fullPath string) (string, string) {
	return path.Dir(fullPath), path.Base(fullPath)
}

// isRootPath reports whether a resolved path names the session root, which has
// no parent listing to look it up in.
func isRootPath(fullPath string) bool {
	return fullPath == "" || fullPath == "." || fullPath == "/"
}

// ancestors returns fullPath and each of its parents, outermost first, stopping
// before the session root.
func ancestors(fullPath string) []string {
	var dirs []string
	for curr := path.Clean(fullPath); !isRootPath(curr); curr = path.Dir(curr) {
		dirs = append(dirs, curr)
	}
	for i, j := 0, len(dirs)-1; i < j; i, j = i+1, j-1 {
		dirs[i], dirs[j] = dirs[j], dirs[i]
	}
	return dirs
}
