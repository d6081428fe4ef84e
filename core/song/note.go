package song

import (
	"fmt"
	"strings"
)

// Spelling selects which enharmonic name a pitch class renders as.
type Spelling int

// Spelling constants.
const (
	// SpellingNone means the note carries no accidental preference;
	// rendering falls back to sharp names.
	SpellingNone Spelling = iota
	// SpellingSharp renders accidentals as sharps (C#, F#).
	SpellingSharp
	// SpellingFlat renders accidentals as flats (Db, Gb).
	SpellingFlat
)

// sharpNames maps pitch classes to their sharp spellings.
var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// flatNames maps pitch classes to their flat spellings.
var flatNames = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

// naturalPC maps note letters to their natural pitch class.
var naturalPC = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
	// German notation: H is B natural.
	'H': 11,
}

// Note is a pitch class (0-11, C=0) together with the accidental
// preference it was written with. Two notes with the same pitch class are
// the same pitch regardless of spelling.
type Note struct {
	// PC is the pitch class, 0-11 with C=0 on the chromatic circle.
	PC int `json:"pc"`

	// Spelling records how the note was written (sharp, flat, or natural).
	Spelling Spelling `json:"spelling,omitempty"`
}

// ParseNote parses a note name: a letter A-G (or H for B), optionally
// followed by '#' or 'b'. Parsing is case-insensitive on the letter.
// Enharmonic edge spellings (E#, Fb, B#, Cb) resolve to their sounding
// pitch class.
func ParseNote(s string) (Note, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 2 {
		return Note{}, false
	}

	letter := s[0]
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	pc, ok := naturalPC[letter]
	if !ok {
		return Note{}, false
	}

	if len(s) == 1 {
		return Note{PC: pc}, true
	}

	switch s[1] {
	case '#':
		return Note{PC: (pc + 1) % 12, Spelling: SpellingSharp}, true
	case 'b':
		return Note{PC: (pc + 11) % 12, Spelling: SpellingFlat}, true
	}
	return Note{}, false
}

// Transpose returns the note shifted by the given number of semitones,
// keeping the original spelling preference. Negative deltas wrap around
// the chromatic circle.
func (n Note) Transpose(semitones int) Note {
	pc := (n.PC + semitones) % 12
	if pc < 0 {
		pc += 12
	}
	return Note{PC: pc, Spelling: n.Spelling}
}

// IsNatural returns true if the pitch class has a natural name (no
// accidental needed in any spelling).
func (n Note) IsNatural() bool {
	return sharpNames[n.PC] == flatNames[n.PC]
}

// Name renders the note using the given spelling preference. Natural
// pitch classes render identically under both spellings. SpellingNone
// falls back to the note's own preference, then to sharps.
func (n Note) Name(pref Spelling) string {
	if pref == SpellingNone {
		pref = n.Spelling
	}
	if pref == SpellingFlat {
		return flatNames[n.PC]
	}
	return sharpNames[n.PC]
}

// String renders the note with its own spelling preference.
func (n Note) String() string {
	return n.Name(n.Spelling)
}

// MustParseNote parses a note name and panics on failure. Intended for
// tests and static tables.
func MustParseNote(s string) Note {
	n, ok := ParseNote(s)
	if !ok {
		panic(fmt.Sprintf("song: invalid note %q", s))
	}
	return n
}
