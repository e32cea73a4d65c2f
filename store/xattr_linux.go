//go:build linux
// +build linux

package store

import (
	"errors"

	"golang.org/x/sys/unix"
)

// xattrAttrs stores metadata as real filesystem extended attributes,
// operating on the file itself rather than following symlinks (mirroring
// the Python original's os.getxattr(..., follow_symlinks=False)).
type xattrAttrs struct{}

func (xattrAttrs) Get(path, key string) (string, bool, error) {
	// A fixed 4096-byte buffer, with no size probe; xattr values here are
	// small (a state label, a hex digest, a comma-joined path list), and a
	// larger value makes Lgetxattr fail with ERANGE.
	buf := make([]byte, 4096)
	n, err := unix.Lgetxattr(path, key, buf)
	if err != nil {
		if errors.Is(err, unix.ENODATA) || errors.Is(err, unix.ENOENT) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(buf[:n]), true, nil
}

func (xattrAttrs) Set(path, key, value string) error {
	return unix.Lsetxattr(path, key, []byte(value), 0)
}

func (xattrAttrs) Remove(path, key string) error {
	err := unix.Lremovexattr(path, key)
	if err != nil && errors.Is(err, unix.ENODATA) {
		return nil
	}
	return err
}

func isUnsupported(err error) bool {
	return errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP)
}
