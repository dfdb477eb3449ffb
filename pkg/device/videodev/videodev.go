// Package videodev provides a [capture.Camera] backed by a video device node
// such as /dev/video0.
//
// The preview only needs to hold the device while the self-view is on, so a
// feed is an open, exclusively held file handle on the node. Frame decoding
// is left to whatever renders the preview.
package videodev

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/MrWong99/carecoach/pkg/capture"
)

// ErrNotDevice is returned when the path exists but is not a character
// device.
var ErrNotDevice = errors.New("videodev: not a character device")

// Camera opens the device node at Path.
type Camera struct {
	Path string

	// AllowRegular accepts regular files in place of device nodes. Tests use
	// it to stand in for /dev/video*.
	AllowRegular bool
}

// New returns a camera for the node at path.
func New(path string) *Camera {
	return &Camera{Path: path}
}

// Open acquires the device read-write.
func (c *Camera) Open(ctx context.Context) (capture.Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(c.Path)
	if err != nil {
		return nil, fmt.Errorf("videodev: %w", err)
	}
	if info.Mode()&fs.ModeCharDevice == 0 && !(c.AllowRegular && info.Mode().IsRegular()) {
		return nil, fmt.Errorf("%w: %s", ErrNotDevice, c.Path)
	}
	f, err := os.OpenFile(c.Path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("videodev: open %s: %w", c.Path, err)
	}
	return &feed{f: f}, nil
}

type feed struct {
	f    *os.File
	once sync.Once
	err  error
}

func (f *feed) Name() string { return f.f.Name() }

func (f *feed) Close() error {
	f.once.Do(func() {
		if err := f.f.Close(); err != nil {
			f.err = fmt.Errorf("videodev: close: %w", err)
		}
	})
	return f.err
}

var _ capture.Camera = (*Camera)(nil)
