package song

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Quality is a chord quality token from the closed quality table.
type Quality string

// Quality constants. QualityMajor is the empty token: a bare root renders
// with no quality text.
const (
	QualityMajor    Quality = ""
	QualityMinor    Quality = "m"
	QualityMaj7     Quality = "maj7"
	QualityMaj9     Quality = "maj9"
	QualityMinor7   Quality = "m7"
	QualityMinor6   Quality = "m6"
	QualityMinor9   Quality = "m9"
	QualityMinor7b5 Quality = "m7b5"
	QualityMinAdd9  Quality = "madd9"
	QualityDim      Quality = "dim"
	QualityDim7     Quality = "dim7"
	QualityAug      Quality = "aug"
	QualitySus2     Quality = "sus2"
	QualitySus4     Quality = "sus4"
	Quality7Sus4    Quality = "7sus4"
	QualityDom7     Quality = "7"
	QualityDom9     Quality = "9"
	QualityDom11    Quality = "11"
	QualityDom13    Quality = "13"
	Quality6        Quality = "6"
	Quality5        Quality = "5"
	QualityAdd9     Quality = "add9"
	QualityAdd11    Quality = "add11"
)

// qualityTable is the priority-ordered table of known quality tokens.
// Resolution is longest-match-wins over this table; ties are broken by
// declaration order. The ordering below is load-bearing for
// disambiguation: "m7b5" must be found before "m7", and "m7" before "m",
// so "Am7" parses as minor-seventh rather than minor with a trailing "7".
var qualityTable = []Quality{
	QualityMinor7b5,
	QualityMinAdd9,
	QualityMaj7,
	QualityMaj9,
	QualityMinor7,
	QualityMinor6,
	QualityMinor9,
	QualityMinor,
	QualityDim7,
	QualityDim,
	QualityAug,
	Quality7Sus4,
	QualitySus2,
	QualitySus4,
	QualityAdd9,
	QualityAdd11,
	QualityDom13,
	QualityDom11,
	QualityDom9,
	QualityDom7,
	Quality6,
	Quality5,
}

// resolveQuality matches the captured quality text against the quality
// table. It returns the longest table entry that prefixes the text, and
// whatever trails it as a verbatim suffix annotation. Text matching
// nothing in the table yields QualityMajor with the whole text as suffix,
// so rendering stays lossless for partially-understood chords.
func resolveQuality(text string) (Quality, string) {
	best := QualityMajor
	for _, q := range qualityTable {
		if len(q) > len(best) && strings.HasPrefix(text, string(q)) {
			best = q
		}
	}
	return best, text[len(best):]
}

// chordGrammar is the participle grammar for chord text.
// Examples: "C", "Am7", "F#m7/C#", "Bbmaj7", "G/B"
//
//nolint:govet // participle grammar tags are not standard struct tags
type chordGrammar struct {
	Root    string `parser:"@Root"`
	Quality string `parser:"@Quality?"`
	Bass    string `parser:"( Slash @Root )?"`
}

// chordLexer defines the lexer for chord text.
// Note: Root is tried first, so "Ab" lexes as a flat root rather than a
// natural root followed by quality text starting with "b".
var chordLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Root", Pattern: `[A-GH][#b]?`},
	{Name: "Quality", Pattern: `[0-9a-z+#()\-]+`},
	{Name: "Slash", Pattern: `/`},
})

// chordParser is the participle parser for chord text.
var chordParser = participle.MustBuild[chordGrammar](
	participle.Lexer(chordLexer),
)

// Chord is either a structured chord (root, quality, optional suffix
// annotation, optional slash bass) or an opaque chord holding the
// original text verbatim. Exactly one of the two, selected by the
// Opaque flag; Raw may be empty even for an opaque chord (an empty
// marker).
type Chord struct {
	// Root is the root pitch class. Meaningless for opaque chords.
	Root Note `json:"root"`

	// Quality is the quality token from the closed quality table.
	Quality Quality `json:"quality,omitempty"`

	// Suffix is unrecognized text trailing the quality, preserved
	// verbatim so rendering is lossless.
	Suffix string `json:"suffix,omitempty"`

	// Bass is the slash-chord bass note, if any.
	Bass *Note `json:"bass,omitempty"`

	// Opaque marks a chord that could not be parsed into a structured
	// form.
	Opaque bool `json:"opaque,omitempty"`

	// Raw holds the original unparsed text for opaque chords.
	Raw string `json:"raw,omitempty"`
}

// Opaque constructs an opaque chord preserving the given text verbatim.
func Opaque(raw string) *Chord {
	return &Chord{Opaque: true, Raw: raw}
}

// IsOpaque returns true if the chord could not be parsed into a
// structured form.
func (c *Chord) IsOpaque() bool {
	return c.Opaque
}

// ParseChord parses chord text like "Am7", "C#dim", "G/B". It never
// fails: text whose root cannot be recognized becomes an opaque chord,
// and a recognized root with unknown trailing text keeps the trailing
// text as a suffix annotation.
func ParseChord(s string) *Chord {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Opaque(s)
	}

	parsed, err := chordParser.ParseString("", trimmed)
	if err != nil {
		return Opaque(s)
	}

	root, ok := ParseNote(parsed.Root)
	if !ok {
		return Opaque(s)
	}

	quality, suffix := resolveQuality(parsed.Quality)

	chord := &Chord{
		Root:    root,
		Quality: quality,
		Suffix:  suffix,
	}
	if parsed.Bass != "" {
		bass, ok := ParseNote(parsed.Bass)
		if !ok {
			return Opaque(s)
		}
		chord.Bass = &bass
	}
	return chord
}

// Name renders the chord under the given spelling preference. Opaque
// chords render as their original text.
func (c *Chord) Name(pref Spelling) string {
	if c.IsOpaque() {
		return c.Raw
	}

	var sb strings.Builder
	sb.WriteString(c.Root.Name(pref))
	sb.WriteString(string(c.Quality))
	sb.WriteString(c.Suffix)
	if c.Bass != nil {
		sb.WriteString("/")
		sb.WriteString(c.Bass.Name(pref))
	}
	return sb.String()
}

// String renders the chord with each note's own spelling preference.
func (c *Chord) String() string {
	return c.Name(SpellingNone)
}

// Clone returns a deep copy of the chord.
func (c *Chord) Clone() *Chord {
	out := *c
	if c.Bass != nil {
		bass := *c.Bass
		out.Bass = &bass
	}
	return &out
}
