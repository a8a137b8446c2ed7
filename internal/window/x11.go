package window

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// X11Desktop implements Desktop on X11 by shelling out to xdotool and xclip.
// Every call is bound to the caller's context so a wedged X server cannot
// stall the pipeline.
type X11Desktop struct {
	xdotool string
	xclip   string
	procDir string
}

// NewX11Desktop locates the helper binaries. It returns ErrUnsupported when no
// X display is configured or xdotool is missing.
func NewX11Desktop() (*X11Desktop, error) {
	if os.Getenv("DISPLAY") == "" {
		return nil, fmt.Errorf("no DISPLAY: %w", ErrUnsupported)
	}
	xdo, err := exec.LookPath("xdotool")
	if err != nil {
		return nil, fmt.Errorf("xdotool: %w", ErrUnsupported)
	}
	// xclip is optional; without it the accessibility strategy reports unsupported.
	xclip, _ := exec.LookPath("xclip")
	return &X11Desktop{xdotool: xdo, xclip: xclip, procDir: "/proc"}, nil
}

func (d *X11Desktop) run(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s %s: %w: %s", bin, strings.Join(args, " "), err, msg)
		}
		return "", fmt.Errorf("%s %s: %w", bin, strings.Join(args, " "), err)
	}
	return string(out), nil
}

func (d *X11Desktop) ForegroundWindow(ctx context.Context) (Handle, error) {
	out, err := d.run(ctx, d.xdotool, "getactivewindow")
	if err != nil {
		return "", err
	}
	return Handle(strings.TrimSpace(out)), nil
}

func (d *X11Desktop) WindowTitle(ctx context.Context, h Handle) (string, error) {
	out, err := d.run(ctx, d.xdotool, "getwindowname", string(h))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (d *X11Desktop) AppName(ctx context.Context, h Handle) (string, error) {
	out, err := d.run(ctx, d.xdotool, "getwindowpid", string(h))
	if err != nil {
		return "", err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return "", fmt.Errorf("parse pid %q: %w", out, err)
	}
	comm, err := os.ReadFile(fmt.Sprintf("%s/%d/comm", d.procDir, pid))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(comm)), nil
}

// EditSelection is not available on X11: there is no cross-toolkit edit
// control protocol.
func (d *X11Desktop) EditSelection(ctx context.Context, h Handle) (EditBuffer, error) {
	return EditBuffer{}, ErrUnsupported
}

// AccessibleSelection reads the PRIMARY selection, which X11 clients update
// with whatever the user has highlighted.
func (d *X11Desktop) AccessibleSelection(ctx context.Context, h Handle) (string, error) {
	if d.xclip == "" {
		return "", ErrUnsupported
	}
	return d.run(ctx, d.xclip, "-o", "-selection", "primary")
}

func (d *X11Desktop) WindowText(ctx context.Context, h Handle) (string, error) {
	return "", ErrUnsupported
}

// NullDesktop reports that no window is focused. It keeps the daemon usable
// (manual completions, model management) on hosts without a supported
// display server.
type NullDesktop struct{}

func (NullDesktop) ForegroundWindow(context.Context) (Handle, error)     { return "", nil }
func (NullDesktop) WindowTitle(context.Context, Handle) (string, error)  { return "", ErrUnsupported }
func (NullDesktop) AppName(context.Context, Handle) (string, error)      { return "", ErrUnsupported }
func (NullDesktop) EditSelection(context.Context, Handle) (EditBuffer, error) {
	return EditBuffer{}, ErrUnsupported
}
func (NullDesktop) AccessibleSelection(context.Context, Handle) (string, error) {
	return "", ErrUnsupported
}
func (NullDesktop) WindowText(context.Context, Handle) (string, error) { return "", ErrUnsupported }

// Detect returns the best Desktop for this host and a short name for logs.
func Detect() (Desktop, string) {
	if d, err := NewX11Desktop(); err == nil {
		return d, "x11"
	}
	return NullDesktop{}, "null"
}
