package shutter

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance.
var validate = validator.New()

// VideoConfig is the encoder configuration handed to a RecorderSink.
type VideoConfig struct {
	Encoder   string `json:"encoder" validate:"required,oneof=h264"`
	Container string `json:"container" validate:"required,oneof=mpeg4"`
	MimeType  string `json:"mime_type" validate:"required"`
	Width     int    `json:"width" validate:"min=1,max=7680"`
	Height    int    `json:"height" validate:"min=1,max=4320"`
	FrameRate int    `json:"frame_rate" validate:"min=1,max=240"`
	BitRate   int    `json:"bit_rate" validate:"min=1"`
}

// DefaultVideoConfig is the fixed recording policy: H.264 1920x1080 at
// 30 fps and 10 Mbps in an MPEG-4 container, video only.
var DefaultVideoConfig = VideoConfig{
	Encoder:   "h264",
	Container: "mpeg4",
	MimeType:  "video/mp4",
	Width:     1920,
	Height:    1080,
	FrameRate: 30,
	BitRate:   10_000_000,
}

// Size returns the encoded frame size.
func (v VideoConfig) Size() Size {
	return Size{Width: v.Width, Height: v.Height}
}

// Validate checks the configuration against the supported encoder policy.
func (v VideoConfig) Validate() error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid video config: %w", err)
	}
	return nil
}
