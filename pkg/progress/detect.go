package progress

import (
	"os"

	"golang.org/x/term"

	"github.com/Sriram-PR/webgrab/pkg/config"
)

// Detect picks the full bar when out is an interactive terminal and the
// built-in line otherwise. The choice is made once, here.
func Detect(out *os.File) Backend {
	if out != nil && term.IsTerminal(int(out.Fd())) {
		return MPBBackend{Out: out}
	}
	return SimpleBackend{Out: out}
}

// ForStyle maps a config.ProgressStyle value onto a Backend writing to out.
// Unknown styles fall back to auto detection.
func ForStyle(style string, out *os.File) Backend {
	switch style {
	case config.ProgressBar:
		return MPBBackend{Out: out}
	case config.ProgressSimple:
		return SimpleBackend{Out: out}
	default:
		return Detect(out)
	}
}
