// Package transpose shifts the chords of a song by a semitone delta.
// Every function is a pure value-to-value transform: inputs are never
// mutated, so documents may be transposed concurrently without
// coordination.
package transpose

import (
	"strings"

	"github.com/openchord/capo/core/song"
)

// SpellingPolicy selects how accidentals are rendered after
// transposition.
type SpellingPolicy int

// Spelling policy constants.
const (
	// PolicyAuto derives sharp or flat spelling from the document's
	// (transposed) key. See spellingForKey for the convention.
	PolicyAuto SpellingPolicy = iota
	// PolicySharps forces sharp spellings (C#, F#).
	PolicySharps
	// PolicyFlats forces flat spellings (Db, Gb).
	PolicyFlats
)

// Summary reports what a document transposition touched.
type Summary struct {
	// Chords is the number of structured chords transposed.
	Chords int `json:"chords"`

	// OpaqueSkipped is the number of opaque chords passed through
	// unchanged.
	OpaqueSkipped int `json:"opaque_skipped"`
}

// flatKeyPCs are the pitch classes whose major keys are conventionally
// spelled flat when reached from a sharp or natural key: Eb, Ab, Bb.
// Keys already written flat stay flat. The enharmonic F#/Gb pair
// deliberately falls outside this set, so it defaults to the sharp
// spelling F#.
var flatKeyPCs = map[int]bool{3: true, 8: true, 10: true}

// splitKey splits a key string like "F#m" into its leading note and the
// remainder ("m"). Returns ok=false if the text does not start with a
// recognizable note.
func splitKey(key string) (song.Note, string, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return song.Note{}, "", false
	}
	if len(key) >= 2 {
		if n, ok := song.ParseNote(key[:2]); ok {
			return n, key[2:], true
		}
	}
	if n, ok := song.ParseNote(key[:1]); ok {
		return n, key[1:], true
	}
	return song.Note{}, "", false
}

// spellingForKey decides sharp versus flat spelling for chords in the
// given (already transposed) key. Convention, following circle-of-fifths
// practice: a key written with a flat keeps flats; otherwise flats are
// used only when the key root lands on Eb, Ab, or Bb; everything else,
// including the F#/Gb enharmonic pair, prefers sharps.
func spellingForKey(original song.Note, transposed song.Note) song.Spelling {
	if original.Spelling == song.SpellingFlat {
		return song.SpellingFlat
	}
	if flatKeyPCs[transposed.PC] {
		return song.SpellingFlat
	}
	return song.SpellingSharp
}

// Chord transposes a single chord by the given semitone delta, rendering
// accidentals with pref. SpellingNone keeps each note's original
// preference. Opaque chords are returned unchanged (a clone of the
// input).
func Chord(c *song.Chord, semitones int, pref song.Spelling) *song.Chord {
	out := c.Clone()
	if c.IsOpaque() {
		return out
	}

	out.Root = shift(c.Root, semitones, pref)
	if c.Bass != nil {
		bass := shift(*c.Bass, semitones, pref)
		out.Bass = &bass
	}
	return out
}

func shift(n song.Note, semitones int, pref song.Spelling) song.Note {
	out := n.Transpose(semitones)
	if pref != song.SpellingNone {
		out.Spelling = pref
	}
	return out
}

// Key transposes a key string like "G", "Bb", "F#m" by the given
// semitone delta, preserving any minor or modal suffix. Text that does
// not start with a recognizable note is returned unchanged.
func Key(key string, semitones int, pref song.Spelling) string {
	root, rest, ok := splitKey(key)
	if !ok {
		return key
	}
	return shift(root, semitones, pref).Name(pref) + rest
}

// Document transposes every chord in the document and the key metadata
// by the given semitone delta, returning a new document and a summary.
// The input document is not modified.
func Document(d *song.Document, semitones int, policy SpellingPolicy) (*song.Document, Summary) {
	pref := song.SpellingSharp
	switch policy {
	case PolicyFlats:
		pref = song.SpellingFlat
	case PolicyAuto:
		if root, _, ok := splitKey(d.Key()); ok {
			pref = spellingForKey(root, root.Transpose(semitones))
		}
	}

	out := d.Clone()
	if key := out.Key(); key != "" {
		out.Metadata[song.MetaKey] = Key(key, semitones, pref)
	}

	var summary Summary
	for si := range out.Sections {
		for li := range out.Sections[si].Lines {
			segs := out.Sections[si].Lines[li].Segments
			for gi := range segs {
				if segs[gi].Kind != song.SegmentChord || segs[gi].Chord == nil {
					continue
				}
				if segs[gi].Chord.IsOpaque() {
					summary.OpaqueSkipped++
					continue
				}
				segs[gi].Chord = Chord(segs[gi].Chord, semitones, pref)
				summary.Chords++
			}
		}
	}
	return out, summary
}

// SemitonesBetween returns the upward semitone distance from one key to
// another, in 0-11. Returns ok=false if either key has no recognizable
// root note.
func SemitonesBetween(from, to string) (int, bool) {
	fromRoot, _, ok := splitKey(from)
	if !ok {
		return 0, false
	}
	toRoot, _, ok := splitKey(to)
	if !ok {
		return 0, false
	}
	delta := (toRoot.PC - fromRoot.PC) % 12
	if delta < 0 {
		delta += 12
	}
	return delta, true
}

// CommonKeys lists the keys offered by quick-transposition pickers.
var CommonKeys = []string{
	"C", "C#", "Db", "D", "D#", "Eb", "E", "F", "F#", "Gb", "G", "G#", "Ab", "A", "A#", "Bb", "B",
	"Cm", "C#m", "Dm", "D#m", "Ebm", "Em", "Fm", "F#m", "Gm", "G#m", "Am", "A#m", "Bbm", "Bm",
}
