// Package normalize repairs the loosely authored markup found on archive pages
// into a small canonical tag vocabulary and validates the result.
//
// The pipeline is lenient on input and strict on output: every tag-like token
// is either mapped onto a canonical form or rejected, and the repaired text must
// satisfy a fixed set of structural checks before it is handed on.
package normalize
