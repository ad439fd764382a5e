package apod

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by extraction and thumbnail derivation.
var (
	// ErrNotFound means no entry was published for the requested date.
	ErrNotFound = errors.New("entry not found")
	// ErrNetwork covers transport failures and retry exhaustion.
	ErrNetwork = errors.New("network failure")
	// ErrParsing means an expected structural marker was absent from a fetched page.
	ErrParsing = errors.New("page parsing failed")
	// ErrHTMLFixing means a normalization or translation invariant was violated.
	ErrHTMLFixing = errors.New("html fixing failed")
	// ErrResourceUnsupported means the thumbnail source type is not handled.
	ErrResourceUnsupported = errors.New("resource unsupported")
	// ErrFileSystem means thumbnail persistence failed.
	ErrFileSystem = errors.New("file system failure")
	// ErrImage means a decode or encode failure.
	ErrImage = errors.New("image processing failed")
)

// HTMLFixingError names the violated invariant and the fragment that broke it.
type HTMLFixingError struct {
	Reason   string
	Fragment string
}

func (e *HTMLFixingError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("html fixing: %s", e.Reason)
	}
	return fmt.Sprintf("html fixing: %s in %q", e.Reason, e.Fragment)
}

// Is reports whether target is ErrHTMLFixing.
func (e *HTMLFixingError) Is(target error) bool {
	return target == ErrHTMLFixing
}

// UnrecognizedTagError carries the raw token the classifier could not map.
type UnrecognizedTagError struct {
	Tag string
}

func (e *UnrecognizedTagError) Error() string {
	return fmt.Sprintf("could not detect tag %s", e.Tag)
}

// Is reports whether target is ErrHTMLFixing.
func (e *UnrecognizedTagError) Is(target error) bool {
	return target == ErrHTMLFixing
}

// ParsingError wraps ErrParsing with the name of the missing marker.
func ParsingError(marker string) error {
	return fmt.Errorf("%w: could not find %s", ErrParsing, marker)
}
