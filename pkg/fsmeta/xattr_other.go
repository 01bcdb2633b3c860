//go:build !linux && !darwin

package fsmeta

import (
	"fmt"

	"github.com/Sriram-PR/webgrab/pkg/utils"
)

func setxattr(path, name, _ string) error {
	return fmt.Errorf("%w: setting '%s' on '%s'", utils.ErrXattrUnsupported, name, path)
}

func getxattr(path, name string) (string, bool, error) {
	return "", false, fmt.Errorf("%w: reading '%s' from '%s'", utils.ErrXattrUnsupported, name, path)
}
