package window

import (
	"context"
	"errors"
)

// Handle is an opaque reference to an OS window. The zero value means "no window".
type Handle string

// Context is a snapshot of the foreground window taken at probe time.
// Empty strings mean the value is unknown. A Context is never mutated after
// the probe returns it.
type Context struct {
	AppName       string
	Title         string
	FileExtension string
	Handle        Handle
}

// IsEmpty reports whether the probe produced no information at all.
func (c Context) IsEmpty() bool {
	return c.Handle == "" && c.AppName == "" && c.Title == "" && c.FileExtension == ""
}

// EditBuffer is the state of a native editable-text control: its full text and
// the selection offsets, counted in runes.
type EditBuffer struct {
	Text  string
	Start int
	End   int
}

// ErrUnsupported is returned by capabilities a desktop does not implement.
var ErrUnsupported = errors.New("window: capability not supported")

// Source queries foreground window metadata.
type Source interface {
	ForegroundWindow(ctx context.Context) (Handle, error)
	WindowTitle(ctx context.Context, h Handle) (string, error)
	AppName(ctx context.Context, h Handle) (string, error)
}

// EditControlReader exposes the native edit-control protocol of a window.
type EditControlReader interface {
	EditSelection(ctx context.Context, h Handle) (EditBuffer, error)
}

// AccessibilityReader queries the accessibility tree for a selection pattern.
type AccessibilityReader interface {
	AccessibleSelection(ctx context.Context, h Handle) (string, error)
}

// WindowTextReader reads the whole visible text of a window.
type WindowTextReader interface {
	WindowText(ctx context.Context, h Handle) (string, error)
}

// Desktop is the complete set of OS capabilities used by the pipeline.
type Desktop interface {
	Source
	EditControlReader
	AccessibilityReader
	WindowTextReader
}
