package progress

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// simpleBarWidth is the number of cells between the brackets of the fallback bar
const simpleBarWidth = 40

// SimpleBackend redraws a single line with a carriage return:
//
//	 42% [================                        ] 4.2 MiB of 10 MiB
//
// The line is cleared when the transfer finishes, so nothing is left on screen.
type SimpleBackend struct {
	Out io.Writer
}

func (b SimpleBackend) NewBar(total int64) Bar {
	return &simpleBar{out: b.Out, total: total}
}

type simpleBar struct {
	out      io.Writer
	total    int64
	current  int64
	lastLine string
	lastLen  int
}

func (b *simpleBar) Add(n int) {
	b.current += int64(n)
	b.draw()
}

func (b *simpleBar) Finish(bool) {
	if b.out == nil || b.lastLen == 0 {
		return
	}
	fmt.Fprintf(b.out, "\r%s\r", strings.Repeat(" ", b.lastLen))
	b.lastLen = 0
}

// draw writes the line only when its text changed
func (b *simpleBar) draw() {
	if b.out == nil {
		return
	}
	line := b.render()
	if line == b.lastLine {
		return
	}
	pad := ""
	if len(line) < b.lastLen {
		pad = strings.Repeat(" ", b.lastLen-len(line))
	}
	fmt.Fprintf(b.out, "\r%s%s", line, pad)
	b.lastLine = line
	b.lastLen = max(b.lastLen, len(line))
}

func (b *simpleBar) render() string {
	done := humanize.IBytes(uint64(b.current))
	if b.total <= 0 {
		return done
	}

	pct := b.current * 100 / b.total
	pct = min(pct, 100)
	filled := int(pct) * simpleBarWidth / 100
	return fmt.Sprintf("%3d%% [%s%s] %s of %s",
		pct,
		strings.Repeat("=", filled),
		strings.Repeat(" ", simpleBarWidth-filled),
		done,
		humanize.IBytes(uint64(b.total)))
}
