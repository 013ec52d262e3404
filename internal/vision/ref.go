// Package vision locates reference templates inside captured screen frames.
//
// Templates live under <root>/battle/<scope>/<file>. They are loaded lazily
// through a TemplateCache shared by every bot slot and matched with zero-mean
// normalized cross-correlation on grayscale, optionally downscaled, copies of
// the frame and template.
package vision

import (
	"errors"
	"path/filepath"
)

var (
	// ErrTemplateMissing is returned when a template file does not exist.
	ErrTemplateMissing = errors.New("template not found")
	// ErrTemplateDecode is returned when a template file cannot be decoded.
	ErrTemplateDecode = errors.New("template unreadable")
)

// DefaultThreshold is the minimum score counted as a match.
const DefaultThreshold = 0.75

// Ref names one reference image by screen scope and file name.
type Ref struct {
	Scope string
	File  string
}

// Path returns the template location below root.
func (r Ref) Path(root string) string {
	return filepath.Join(root, "battle", filepath.FromSlash(r.Scope), r.File)
}

func (r Ref) String() string {
	return r.Scope + "/" + r.File
}

// Result is the center of a match in full-resolution frame coordinates.
type Result struct {
	X, Y  int
	Score float64
}
