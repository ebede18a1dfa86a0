package v4l2

import (
	"bytes"
	"errors"
	"io"
)

// maxPending bounds how much unterminated data is buffered while looking for
// the end of a JPEG frame.
const maxPending = 8 << 20

var (
	soi = []byte{0xFF, 0xD8}
	eoi = []byte{0xFF, 0xD9}
)

// FrameWriter receives encoded frames from a running capture session.
// Surfaces that do not implement it cannot be used as capture targets.
type FrameWriter interface {
	WriteFrame(frame []byte) error
}

// readFrames splits an MJPEG byte stream into JPEG frames on SOI and EOI
// markers and passes each complete frame to emit. It returns nil at EOF.
func readFrames(r io.Reader, emit func([]byte)) error {
	chunk := make([]byte, 64*1024)
	var pending []byte
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)
			pending = splitFrames(pending, emit)
			if len(pending) > maxPending {
				pending = pending[:0]
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// splitFrames emits every complete frame in data and returns the unconsumed
// remainder.
func splitFrames(data []byte, emit func([]byte)) []byte {
	for {
		start := bytes.Index(data, soi)
		if start < 0 {
			// A marker may straddle two reads.
			if n := len(data); n > 0 && data[n-1] == 0xFF {
				return append(data[:0], 0xFF)
			}
			return data[:0]
		}
		end := bytes.Index(data[start+len(soi):], eoi)
		if end < 0 {
			return append(data[:0], data[start:]...)
		}
		end += start + len(soi) + len(eoi)

		frame := make([]byte, end-start)
		copy(frame, data[start:end])
		emit(frame)
		data = data[end:]
	}
}
