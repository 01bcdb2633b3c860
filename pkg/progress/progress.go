// Package progress reports download progress while a response body is streamed.
//
// A download is consumed as a lazy sequence of chunks (Chunks). Track wraps that
// sequence, passing every chunk through unchanged while a Bar from the selected
// Backend shows how many bytes have gone by.
package progress

import (
	"io"
	"iter"
)

// DefaultChunkSize is used when Chunks is given a non-positive size
const DefaultChunkSize = 1024

// Bar displays the progress of one transfer
type Bar interface {
	// Add reports n more bytes transferred
	Add(n int)
	// Finish tears the display down. complete is false when the transfer
	// stopped early (read error or the consumer quit).
	Finish(complete bool)
}

// Backend creates bars. total <= 0 means the size is unknown.
type Backend interface {
	NewBar(total int64) Bar
}

// Chunks returns a single-pass sequence over r in pieces of at most chunkSize bytes.
// One buffer is reused for every chunk; consumers must not retain a chunk past the next step.
// A read error is yielded once and ends the sequence.
func Chunks(r io.Reader, chunkSize int) iter.Seq2[[]byte, error] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, chunkSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// Track yields every chunk of chunks unchanged and in order, reporting cumulative
// bytes to a bar created from backend. The bar is created when iteration starts
// and finished when the sequence ends, fails, or the consumer stops.
func Track(chunks iter.Seq2[[]byte, error], total int64, backend Backend) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		bar := backend.NewBar(total)
		complete := false
		defer func() { bar.Finish(complete) }()

		for chunk, err := range chunks {
			if err != nil {
				yield(nil, err)
				return
			}
			bar.Add(len(chunk))
			if !yield(chunk, nil) {
				return
			}
		}
		complete = true
	}
}

// Discard is a Backend whose bars draw nothing
type Discard struct{}

func (Discard) NewBar(int64) Bar { return discardBar{} }

type discardBar struct{}

func (discardBar) Add(int)     {}
func (discardBar) Finish(bool) {}
