package selection

import (
	"context"
	"strings"

	"overlayd/internal/window"
)

// Strategy is one way of obtaining the selected text of a window. An empty
// string or an error both mean "no result from this strategy".
type Strategy interface {
	Name() string
	TryExtract(ctx context.Context, h window.Handle) (string, error)
}

// lowConfidence is implemented by strategies whose output is a substitute for
// a real selection.
type lowConfidence interface {
	LowConfidence() bool
}

// EditControl reads the selection offsets and text buffer of a native
// editable-text control and slices [start, end).
type EditControl struct {
	Reader window.EditControlReader
}

func (EditControl) Name() string { return "edit_control" }

func (s EditControl) TryExtract(ctx context.Context, h window.Handle) (string, error) {
	buf, err := s.Reader.EditSelection(ctx, h)
	if err != nil {
		return "", err
	}
	return sliceSelection(buf), nil
}

// sliceSelection returns the selected runes of buf. Reversed ranges (selection
// made right to left) are normalized and offsets are clamped to the buffer.
func sliceSelection(buf window.EditBuffer) string {
	start, end := buf.Start, buf.End
	if start > end {
		start, end = end, start
	}
	runes := []rune(buf.Text)
	start = clamp(start, 0, len(runes))
	end = clamp(end, 0, len(runes))
	if start == end {
		return ""
	}
	return string(runes[start:end])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Accessibility asks the accessibility tree for the selected range.
type Accessibility struct {
	Reader window.AccessibilityReader
}

func (Accessibility) Name() string { return "accessibility" }

func (s Accessibility) TryExtract(ctx context.Context, h window.Handle) (string, error) {
	return s.Reader.AccessibleSelection(ctx, h)
}

// WindowText is the last resort: the whole visible text of the window, trimmed.
// It is not a true selection and is flagged as low confidence.
type WindowText struct {
	Reader window.WindowTextReader
}

func (WindowText) Name() string        { return "window_text" }
func (WindowText) LowConfidence() bool { return true }

func (s WindowText) TryExtract(ctx context.Context, h window.Handle) (string, error) {
	text, err := s.Reader.WindowText(ctx, h)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// DefaultStrategies returns the fixed priority chain backed by d.
func DefaultStrategies(d window.Desktop) []Strategy {
	return []Strategy{
		EditControl{Reader: d},
		Accessibility{Reader: d},
		WindowText{Reader: d},
	}
}
