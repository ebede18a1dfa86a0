// Package output resolves where recordings are written and watches the
// output directory for finished files.
package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"

	"github.com/zoobzio/shutter"
)

// Defaults mirror the gallery location of the mobile app.
const (
	DefaultRelativePath = "Movies/Shutter"
	DefaultPrefix       = "video_no_audio"
	DefaultMimeType     = "video/mp4"

	timestampLayout = "20060102_150405"
)

// Resolver creates a new destination under root for every recording.
type Resolver struct {
	root         string
	relativePath string
	prefix       string
	mimeType     string
	clock        clockz.Clock
}

var _ shutter.OutputResolver = (*Resolver)(nil)

// NewResolver creates a Resolver writing below root.
func NewResolver(root string) *Resolver {
	return &Resolver{
		root:         root,
		relativePath: DefaultRelativePath,
		prefix:       DefaultPrefix,
		mimeType:     DefaultMimeType,
		clock:        clockz.RealClock,
	}
}

// RelativePath sets the directory below root. Default: Movies/Shutter.
func (r *Resolver) RelativePath(p string) *Resolver {
	r.relativePath = p
	return r
}

// Prefix sets the file name prefix. Default: video_no_audio.
func (r *Resolver) Prefix(p string) *Resolver {
	r.prefix = p
	return r
}

// MimeType sets the MIME type recorded on destinations. Default: video/mp4.
func (r *Resolver) MimeType(m string) *Resolver {
	r.mimeType = m
	return r
}

// Clock sets the clock used for file name timestamps.
func (r *Resolver) Clock(clock clockz.Clock) *Resolver {
	r.clock = clock
	return r
}

// Dir returns the directory recordings are written to.
func (r *Resolver) Dir() string {
	return filepath.Join(r.root, filepath.FromSlash(r.relativePath))
}

// Resolve creates the output directory if needed and returns a destination
// that no earlier call returned.
func (r *Resolver) Resolve(ctx context.Context) (shutter.Destination, error) {
	if err := ctx.Err(); err != nil {
		return shutter.Destination{}, err
	}

	dir := r.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return shutter.Destination{}, fmt.Errorf("create output dir %s: %w", dir, err)
	}

	id := uuid.NewString()
	name := fmt.Sprintf("%s_%s_%s.mp4", r.prefix, r.clock.Now().Format(timestampLayout), id)
	return shutter.Destination{
		ID:           id,
		Path:         filepath.Join(dir, name),
		DisplayName:  name,
		MimeType:     r.mimeType,
		RelativePath: r.relativePath,
	}, nil
}
