package v4l2

import (
	"sync"

	"github.com/zoobzio/shutter"
)

// FrameBuffer is a preview surface that keeps the latest frame and fans new
// frames out to subscribers.
type FrameBuffer struct {
	id string

	mu     sync.Mutex
	size   shutter.Size
	latest []byte
	frames uint64
	subs   map[chan []byte]struct{}
}

var (
	_ shutter.PreviewSurface = (*FrameBuffer)(nil)
	_ FrameWriter            = (*FrameBuffer)(nil)
)

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer(id string) *FrameBuffer {
	return &FrameBuffer{id: id, subs: make(map[chan []byte]struct{})}
}

// SurfaceID returns the buffer's identifier.
func (b *FrameBuffer) SurfaceID() string {
	return b.id
}

// SetDefaultBufferSize records the size frames are captured at.
func (b *FrameBuffer) SetDefaultBufferSize(size shutter.Size) {
	b.mu.Lock()
	b.size = size
	b.mu.Unlock()
}

// BufferSize returns the size set by SetDefaultBufferSize.
func (b *FrameBuffer) BufferSize() shutter.Size {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// WriteFrame stores frame as the latest and offers it to every subscriber.
// Subscribers that are not keeping up miss frames.
func (b *FrameBuffer) WriteFrame(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = frame
	b.frames++
	for ch := range b.subs {
		select {
		case ch <- frame:
		default:
		}
	}
	return nil
}

// Latest returns the most recent frame, if any.
func (b *FrameBuffer) Latest() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.latest != nil
}

// Frames returns the number of frames written.
func (b *FrameBuffer) Frames() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Subscribe returns a channel of new frames and a function that cancels the
// subscription and closes the channel.
func (b *FrameBuffer) Subscribe(buffer int) (<-chan []byte, func()) {
	ch := make(chan []byte, buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}
