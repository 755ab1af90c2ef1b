package stream

import (
	"sync/atomic"

	"github.com/nerrad567/croquetia-core/internal/message"
)

// Frame is one immutable buffer generation.
type Frame struct {
	Generation uint64
	Pixels     []message.Pixel
}

// Buffer holds the latest pixel strip. Writers replace the whole frame, so
// a reader always sees one complete generation.
type Buffer struct {
	current atomic.Pointer[Frame]
	gen     atomic.Uint64
}

// Set replaces the buffer with a copy of pixels and returns the new generation.
func (b *Buffer) Set(pixels []message.Pixel) uint64 {
	cp := make([]message.Pixel, len(pixels))
	copy(cp, pixels)
	f := &Frame{Generation: b.gen.Add(1), Pixels: cp}
	b.current.Store(f)
	return f.Generation
}

// Load returns the current frame. Before the first Set it is an empty
// frame with generation 0.
func (b *Buffer) Load() Frame {
	if f := b.current.Load(); f != nil {
		return *f
	}
	return Frame{Pixels: []message.Pixel{}}
}

// Flatten converts (h,s,v) triples to one flat sequence in pixel order.
// The result is never nil, so an empty strip still encodes as [].
func Flatten(pixels []message.Pixel) []float64 {
	flat := make([]float64, 0, len(pixels)*len(message.Pixel{}))
	for _, p := range pixels {
		flat = append(flat, p[0], p[1], p[2])
	}
	return flat
}
