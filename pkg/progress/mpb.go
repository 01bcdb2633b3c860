package progress

import (
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// BarWidth is the fixed width, in columns, of the full progress bar
const BarWidth = 80

// MPBBackend draws a percentage, a bar between │ bounds, and "n of total" in binary units
type MPBBackend struct {
	Out io.Writer
}

func (b MPBBackend) NewBar(total int64) Bar {
	p := mpb.New(mpb.WithOutput(b.Out), mpb.WithWidth(BarWidth))

	if total <= 0 {
		// Unknown size: byte count only
		bar := p.New(0, mpb.NopStyle(),
			mpb.AppendDecorators(decor.CurrentKibiByte("% .1f")),
		)
		return &mpbBar{p: p, bar: bar, unknownTotal: true}
	}

	bar := p.New(total,
		mpb.BarStyle().Lbound("│").Rbound("│"),
		mpb.PrependDecorators(decor.Percentage(decor.WC{W: 5})),
		mpb.AppendDecorators(decor.CountersKibiByte("% .1f of % .1f")),
	)
	return &mpbBar{p: p, bar: bar}
}

type mpbBar struct {
	p            *mpb.Progress
	bar          *mpb.Bar
	unknownTotal bool
}

func (b *mpbBar) Add(n int) {
	b.bar.IncrBy(n)
}

func (b *mpbBar) Finish(complete bool) {
	switch {
	case complete && b.unknownTotal:
		b.bar.SetTotal(-1, true) // current becomes the total
	case !b.bar.Completed():
		// Short body or early stop: keep the last frame on screen
		b.bar.Abort(false)
	}
	b.p.Wait()
}
