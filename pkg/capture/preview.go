package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Camera grants access to a video input device.
type Camera interface {
	// Open acquires the device for preview.
	Open(ctx context.Context) (Feed, error)
}

// Feed is a live, exclusively owned camera stream.
type Feed interface {
	// Name describes the device, e.g. "/dev/video0".
	Name() string

	// Close stops the feed and releases the device.
	Close() error
}

// Preview toggles the candidate's camera self-view. Like the microphone, the
// camera is held only while the preview is on.
type Preview struct {
	cam Camera
	log *slog.Logger

	mu         sync.Mutex
	feed       Feed
	permission Permission
}

// NewPreview returns an inactive preview backed by cam.
func NewPreview(cam Camera, log *slog.Logger) *Preview {
	if log == nil {
		log = slog.Default()
	}
	return &Preview{cam: cam, log: log, permission: PermissionNotYetAsked}
}

// Toggle turns the preview on when it is off and off when it is on. It
// returns whether the preview is active afterwards. Acquisition failures
// match [ErrPermissionDenied].
func (p *Preview) Toggle(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.feed != nil {
		feed := p.feed
		p.feed = nil
		if err := feed.Close(); err != nil {
			return false, fmt.Errorf("capture: release camera: %w", err)
		}
		return false, nil
	}

	feed, err := p.cam.Open(ctx)
	if err != nil {
		p.permission = PermissionDenied
		p.log.Warn("capture: camera unavailable", "err", err)
		return false, &PermissionError{Device: "camera", Err: err}
	}
	p.permission = PermissionGranted
	p.feed = feed
	return true, nil
}

// Active reports whether the camera is currently held.
func (p *Preview) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feed != nil
}

// Source returns the name of the active feed, or "" when inactive.
func (p *Preview) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.feed == nil {
		return ""
	}
	return p.feed.Name()
}

// Permission returns the outcome of the most recent camera request.
func (p *Preview) Permission() Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permission
}

// Close releases the camera if it is held.
func (p *Preview) Close() error {
	p.mu.Lock()
	feed := p.feed
	p.feed = nil
	p.mu.Unlock()
	if feed == nil {
		return nil
	}
	if err := feed.Close(); err != nil {
		return fmt.Errorf("capture: release camera: %w", err)
	}
	return nil
}
