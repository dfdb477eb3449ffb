package videodev_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/carecoach/pkg/capture"
	"github.com/MrWong99/carecoach/pkg/device/videodev"
)

func fakeNode(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCamera_OpenAndClose(t *testing.T) {
	t.Parallel()

	path := fakeNode(t)
	cam := &videodev.Camera{Path: path, AllowRegular: true}
	feed, err := cam.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if feed.Name() != path {
		t.Errorf("Name = %q, want %q", feed.Name(), path)
	}
	if err := feed.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := feed.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestCamera_RejectsRegularFile(t *testing.T) {
	t.Parallel()

	cam := videodev.New(fakeNode(t))
	if _, err := cam.Open(context.Background()); !errors.Is(err, videodev.ErrNotDevice) {
		t.Fatalf("err = %v, want ErrNotDevice", err)
	}
}

func TestCamera_Missing(t *testing.T) {
	t.Parallel()

	cam := videodev.New(filepath.Join(t.TempDir(), "nope"))
	if _, err := cam.Open(context.Background()); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestCamera_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cam := &videodev.Camera{Path: fakeNode(t), AllowRegular: true}
	if _, err := cam.Open(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestCamera_DrivesPreview(t *testing.T) {
	t.Parallel()

	path := fakeNode(t)
	p := capture.NewPreview(&videodev.Camera{Path: path, AllowRegular: true}, nil)
	on, err := p.Toggle(context.Background())
	if err != nil || !on {
		t.Fatalf("Toggle on = %v, %v", on, err)
	}
	if p.Source() != path {
		t.Errorf("Source = %q", p.Source())
	}
	if on, _ := p.Toggle(context.Background()); on {
		t.Error("Toggle off left the preview active")
	}

	denied := capture.NewPreview(videodev.New(filepath.Join(t.TempDir(), "missing")), nil)
	if _, err := denied.Toggle(context.Background()); !errors.Is(err, capture.ErrPermissionDenied) {
		t.Errorf("missing device err = %v, want ErrPermissionDenied", err)
	}
}
