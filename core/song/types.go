// Package song defines the document model for parsed ChordPro songs.
// All format handlers and the transposition engine operate on these
// types rather than defining their own. Documents are immutable once
// constructed: operations that change a document return a new one.
package song

import (
	"strconv"
	"strings"
)

// SectionKind identifies the kind of a song section.
type SectionKind string

// Section kind constants. KindBody holds content that appears outside
// any environment directive pair.
const (
	KindBody      SectionKind = "body"
	KindVerse     SectionKind = "verse"
	KindChorus    SectionKind = "chorus"
	KindBridge    SectionKind = "bridge"
	KindTab       SectionKind = "tab"
	KindGrid      SectionKind = "grid"
	KindPreChorus SectionKind = "prechorus"
	KindIntro     SectionKind = "intro"
	KindOutro     SectionKind = "outro"
	KindInterlude SectionKind = "interlude"
	KindTag       SectionKind = "tag"
	KindEnding    SectionKind = "ending"
)

// validSectionKinds is the set of valid section kinds.
var validSectionKinds = map[SectionKind]bool{
	KindBody:      true,
	KindVerse:     true,
	KindChorus:    true,
	KindBridge:    true,
	KindTab:       true,
	KindGrid:      true,
	KindPreChorus: true,
	KindIntro:     true,
	KindOutro:     true,
	KindInterlude: true,
	KindTag:       true,
	KindEnding:    true,
}

// IsValid returns true if the section kind is valid.
func (k SectionKind) IsValid() bool {
	return validSectionKinds[k]
}

// SegmentKind identifies the kind of a line segment.
type SegmentKind string

// Segment kind constants.
const (
	SegmentText  SegmentKind = "text"
	SegmentChord SegmentKind = "chord"
)

// Segment is one unit of a line: either a lyric text run or a chord
// anchored at a rune offset within the line's full lyric text. Exactly
// one of Text and Chord is meaningful, selected by Kind; consumers
// switch exhaustively on Kind.
type Segment struct {
	// Kind selects the segment variant.
	Kind SegmentKind `json:"kind"`

	// Text is the lyric run for text segments.
	Text string `json:"text,omitempty"`

	// Chord is the anchored chord for chord segments.
	Chord *Chord `json:"chord,omitempty"`

	// Offset is the rune offset of the chord within the line's lyric
	// text. Offsets are non-decreasing in segment order and never
	// exceed the line's lyric length.
	Offset int `json:"offset,omitempty"`
}

// Line is an ordered sequence of segments.
type Line struct {
	Segments []Segment `json:"segments,omitempty"`
}

// Text returns the line's full lyric text with chords stripped.
func (l *Line) Text() string {
	var sb strings.Builder
	for _, seg := range l.Segments {
		if seg.Kind == SegmentText {
			sb.WriteString(seg.Text)
		}
	}
	return sb.String()
}

// Chords returns the line's chord segments in order.
func (l *Line) Chords() []Segment {
	var out []Segment
	for _, seg := range l.Segments {
		if seg.Kind == SegmentChord {
			out = append(out, seg)
		}
	}
	return out
}

// IsEmpty returns true if the line has no segments at all.
func (l *Line) IsEmpty() bool {
	return len(l.Segments) == 0
}

// Section is a named block of lines.
type Section struct {
	// Kind is the section kind (verse, chorus, body, ...).
	Kind SectionKind `json:"kind"`

	// Label is the optional environment label, e.g. "1" in
	// {start_of_verse: 1}.
	Label string `json:"label,omitempty"`

	// Lines are the section's lines in order.
	Lines []Line `json:"lines,omitempty"`
}

// Metadata field names with typed accessors. All directive names are
// stored lowercased.
const (
	MetaTitle    = "title"
	MetaSubtitle = "subtitle"
	MetaArtist   = "artist"
	MetaComposer = "composer"
	MetaKey      = "key"
	MetaCapo     = "capo"
	MetaTempo    = "tempo"
	MetaTime     = "time"
	MetaDuration = "duration"
)

// Document is a fully parsed song: metadata plus ordered sections. A
// document is constructed once by a parser and never mutated in place.
type Document struct {
	// Metadata maps directive names to their raw string values.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Flags holds unknown directives that appeared without an argument.
	Flags map[string]bool `json:"flags,omitempty"`

	// Sections are the song's sections in order.
	Sections []Section `json:"sections,omitempty"`
}

// Meta returns the raw metadata value for a directive name.
func (d *Document) Meta(name string) (string, bool) {
	v, ok := d.Metadata[name]
	return v, ok
}

// Title returns the song title, or "".
func (d *Document) Title() string { return d.Metadata[MetaTitle] }

// Subtitle returns the song subtitle, or "".
func (d *Document) Subtitle() string { return d.Metadata[MetaSubtitle] }

// Artist returns the song artist, or "".
func (d *Document) Artist() string { return d.Metadata[MetaArtist] }

// Composer returns the song composer, or "".
func (d *Document) Composer() string { return d.Metadata[MetaComposer] }

// Key returns the song key exactly as written, or "".
func (d *Document) Key() string { return d.Metadata[MetaKey] }

// TimeSignature returns the time signature, or "".
func (d *Document) TimeSignature() string { return d.Metadata[MetaTime] }

// Duration returns the song duration exactly as written, or "".
func (d *Document) Duration() string { return d.Metadata[MetaDuration] }

// Capo returns the capo position, if present and numeric.
func (d *Document) Capo() (int, bool) {
	return d.intMeta(MetaCapo)
}

// Tempo returns the tempo in BPM, if present and numeric.
func (d *Document) Tempo() (int, bool) {
	return d.intMeta(MetaTempo)
}

func (d *Document) intMeta(name string) (int, bool) {
	v, ok := d.Metadata[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// PlainText returns the song lyrics with all chords and directives
// stripped, one line per lyric line. Empty lines are dropped.
func (d *Document) PlainText() string {
	var sb strings.Builder
	for _, sec := range d.Sections {
		for _, line := range sec.Lines {
			text := strings.TrimSpace(line.Text())
			if text == "" {
				continue
			}
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// FirstLine returns the first non-empty lyric line, for search indexing.
func (d *Document) FirstLine() string {
	for _, sec := range d.Sections {
		for _, line := range sec.Lines {
			if text := strings.TrimSpace(line.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{}
	if d.Metadata != nil {
		out.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	if d.Flags != nil {
		out.Flags = make(map[string]bool, len(d.Flags))
		for k, v := range d.Flags {
			out.Flags[k] = v
		}
	}
	if d.Sections != nil {
		out.Sections = make([]Section, len(d.Sections))
		for i, sec := range d.Sections {
			cp := Section{Kind: sec.Kind, Label: sec.Label}
			if sec.Lines != nil {
				cp.Lines = make([]Line, len(sec.Lines))
				for j, line := range sec.Lines {
					if line.Segments != nil {
						segs := make([]Segment, len(line.Segments))
						for k, seg := range line.Segments {
							if seg.Chord != nil {
								seg.Chord = seg.Chord.Clone()
							}
							segs[k] = seg
						}
						cp.Lines[j] = Line{Segments: segs}
					}
				}
			}
			out.Sections[i] = cp
		}
	}
	return out
}

// DiagnosticKind identifies the kind of a parse diagnostic.
type DiagnosticKind string

// Diagnostic kind constants.
const (
	// DiagUnbalancedSection reports an end_of_X directive that does not
	// match the currently open section.
	DiagUnbalancedSection DiagnosticKind = "unbalanced_section"

	// DiagUnclosedSection reports a section still open at end of input.
	DiagUnclosedSection DiagnosticKind = "unclosed_section"

	// DiagUnknownSection reports an environment directive with a kind
	// outside the known set.
	DiagUnknownSection DiagnosticKind = "unknown_section"

	// DiagOpaqueChord reports a chord marker that degraded to an opaque
	// chord. Informational: the parse still succeeds.
	DiagOpaqueChord DiagnosticKind = "opaque_chord"

	// DiagEmptyChord reports an empty chord marker, kept as an opaque
	// chord so rendering stays lossless.
	DiagEmptyChord DiagnosticKind = "empty_chord"
)

// Diagnostic is a non-fatal issue collected during lenient parsing. In
// strict mode the first diagnostic terminates the parse.
type Diagnostic struct {
	// Kind identifies the issue.
	Kind DiagnosticKind `json:"kind"`

	// Line is the 1-indexed source line number.
	Line int `json:"line"`

	// Context is the offending text or a short description.
	Context string `json:"context,omitempty"`

	// Expected and Found carry the section kinds for unbalanced
	// section diagnostics.
	Expected SectionKind `json:"expected,omitempty"`
	Found    SectionKind `json:"found,omitempty"`
}
