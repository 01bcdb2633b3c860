//go:build linux || darwin

package fsmeta

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/Sriram-PR/webgrab/pkg/utils"
)

func setxattr(path, name, value string) error {
	err := unix.Setxattr(path, xattrPrefix+name, []byte(value), 0)
	if err == nil {
		return nil
	}
	if isUnsupported(err) {
		return fmt.Errorf("%w: setting '%s' on '%s': %w", utils.ErrXattrUnsupported, name, path, err)
	}
	return fmt.Errorf("%w: setting xattr '%s' on '%s': %w", utils.ErrFilesystem, name, path, err)
}

func getxattr(path, name string) (string, bool, error) {
	full := xattrPrefix + name
	for {
		size, err := unix.Getxattr(path, full, nil)
		if err != nil {
			return "", false, classifyGetErr(path, name, err)
		}
		if size == 0 {
			return "", true, nil
		}

		buf := make([]byte, size)
		n, err := unix.Getxattr(path, full, buf)
		if errors.Is(err, unix.ERANGE) {
			continue // value grew between the two calls
		}
		if err != nil {
			return "", false, classifyGetErr(path, name, err)
		}
		return string(buf[:n]), true, nil
	}
}

func classifyGetErr(path, name string, err error) error {
	switch {
	case errors.Is(err, errNoAttr):
		return nil
	case isUnsupported(err):
		return fmt.Errorf("%w: reading '%s' from '%s': %w", utils.ErrXattrUnsupported, name, path, err)
	default:
		return fmt.Errorf("%w: reading xattr '%s' from '%s': %w", utils.ErrFilesystem, name, path, err)
	}
}

func isUnsupported(err error) bool {
	return errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP)
}
