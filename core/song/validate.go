package song

import (
	"fmt"
	"unicode/utf8"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// newValidationError creates a new ValidationError.
func newValidationError(path, message string) error {
	return &ValidationError{Path: path, Message: message}
}

// ValidateDocument validates a Document and returns all validation
// errors. A document produced by a successful parse always validates
// cleanly; this exists for documents assembled by hand or decoded from
// storage.
func ValidateDocument(d *Document) []error {
	var errs []error

	for i, sec := range d.Sections {
		secPath := fmt.Sprintf("document.sections[%d]", i)

		if !sec.Kind.IsValid() {
			errs = append(errs, newValidationError(secPath,
				fmt.Sprintf("invalid section kind: %q", sec.Kind)))
		}

		for j, line := range sec.Lines {
			linePath := fmt.Sprintf("%s.lines[%d]", secPath, j)
			errs = append(errs, validateLine(linePath, &line)...)
		}
	}

	return errs
}

// validateLine checks the segment invariants: chord anchors are
// non-decreasing in segment order and never exceed the line's lyric
// length, and every segment is exactly one of text or chord.
func validateLine(path string, l *Line) []error {
	var errs []error

	lyricLen := utf8.RuneCountInString(l.Text())
	lastOffset := 0

	for i, seg := range l.Segments {
		segPath := fmt.Sprintf("%s.segments[%d]", path, i)

		switch seg.Kind {
		case SegmentText:
			if seg.Chord != nil {
				errs = append(errs, newValidationError(segPath,
					"text segment must not carry a chord"))
			}
		case SegmentChord:
			if seg.Chord == nil {
				errs = append(errs, newValidationError(segPath,
					"chord segment missing chord"))
				continue
			}
			errs = append(errs, validateChord(segPath, seg.Chord)...)
			if seg.Offset < lastOffset {
				errs = append(errs, newValidationError(segPath,
					fmt.Sprintf("anchor offset %d decreases below %d", seg.Offset, lastOffset)))
			}
			if seg.Offset > lyricLen {
				errs = append(errs, newValidationError(segPath,
					fmt.Sprintf("anchor offset %d exceeds lyric length %d", seg.Offset, lyricLen)))
			}
			lastOffset = seg.Offset
		default:
			errs = append(errs, newValidationError(segPath,
				fmt.Sprintf("invalid segment kind: %q", seg.Kind)))
		}
	}

	return errs
}

// validateChord checks the structured/opaque exclusivity invariant.
func validateChord(path string, c *Chord) []error {
	var errs []error

	if c.IsOpaque() {
		if c.Quality != QualityMajor || c.Suffix != "" || c.Bass != nil {
			errs = append(errs, newValidationError(path,
				"opaque chord must not carry structured fields"))
		}
		return errs
	}

	if c.Raw != "" {
		errs = append(errs, newValidationError(path,
			"structured chord must not carry raw text"))
	}
	if c.Root.PC < 0 || c.Root.PC > 11 {
		errs = append(errs, newValidationError(path,
			fmt.Sprintf("root pitch class %d out of range", c.Root.PC)))
	}
	if c.Bass != nil && (c.Bass.PC < 0 || c.Bass.PC > 11) {
		errs = append(errs, newValidationError(path,
			fmt.Sprintf("bass pitch class %d out of range", c.Bass.PC)))
	}

	return errs
}
