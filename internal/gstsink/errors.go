package gstsink

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory represents the classification of sink pipeline errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryDisplay indicates the video sink could not reach a display
	ErrCategoryDisplay ErrorCategory = iota
	// ErrCategoryNegotiation indicates caps/format negotiation failures
	ErrCategoryNegotiation
	// ErrCategoryResource indicates missing elements, busy or unreadable resources
	ErrCategoryResource
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryDisplay:
		return "display"
	case ErrCategoryNegotiation:
		return "negotiation"
	case ErrCategoryResource:
		return "resource"
	default:
		return "unknown"
	}
}

var (
	displayKeywords = []string{
		"display",
		"window",
		"x11",
		"xvimage",
		"wayland",
		"egl",
		"opengl",
	}

	negotiationKeywords = []string{
		"not-negotiated",
		"not negotiated",
		"negotiation",
		"caps",
		"format",
		"internal data stream error",
	}

	resourceKeywords = []string{
		"resource",
		"busy",
		"could not open",
		"permission",
		"no such",
		"no element",
		"missing plugin",
		"out of memory",
	}
)

// ClassifyGStreamerError categorizes a GStreamer error from the sink pipeline.
//
// go-gst's GError does not expose the error domain, so classification relies
// on string matching over the message and debug string.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return ClassifyError(gerr.Error(), gerr.DebugString())
}

// ClassifyError categorizes an error message and debug string.
//
// Priority: display, then negotiation, then resource.
func ClassifyError(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)

	switch {
	case containsAny(combined, displayKeywords):
		return ErrCategoryDisplay
	case containsAny(combined, negotiationKeywords):
		return ErrCategoryNegotiation
	case containsAny(combined, resourceKeywords):
		return ErrCategoryResource
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
