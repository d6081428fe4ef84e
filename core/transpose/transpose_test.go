package transpose

import (
	"testing"

	"github.com/openchord/capo/core/song"
)

func TestChord(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		semitones int
		pref      song.Spelling
		want      string
	}{
		{"up two", "C", 2, song.SpellingSharp, "D"},
		{"accidental sharp", "A", 1, song.SpellingSharp, "A#"},
		{"accidental flat", "A", 1, song.SpellingFlat, "Bb"},
		{"quality preserved", "Am7", 3, song.SpellingSharp, "Cm7"},
		{"suffix preserved", "C7alt", 2, song.SpellingSharp, "D7alt"},
		{"slash bass moves too", "G/B", 2, song.SpellingSharp, "A/C#"},
		{"wrap down", "C", -1, song.SpellingSharp, "B"},
		{"down preserves quality", "Dm", -2, song.SpellingSharp, "Cm"},
		{"respell only", "C#", 0, song.SpellingFlat, "Db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := song.ParseChord(tt.input)
			got := Chord(c, tt.semitones, tt.pref)
			if got.Name(song.SpellingNone) != tt.want {
				t.Errorf("Chord(%q, %d) = %q, want %q",
					tt.input, tt.semitones, got.Name(song.SpellingNone), tt.want)
			}
		})
	}
}

func TestChordZeroIsIdentity(t *testing.T) {
	for _, in := range []string{"C", "Am7", "F#m7/C#", "Bbmaj7", "E#", "Cb"} {
		c := song.ParseChord(in)
		got := Chord(c, 0, song.SpellingNone)
		if got.Name(song.SpellingNone) != c.Name(song.SpellingNone) {
			t.Errorf("Chord(%q, 0) = %q", in, got.Name(song.SpellingNone))
		}
	}
}

func TestChordFullOctaveIsIdentity(t *testing.T) {
	for _, in := range []string{"C", "G#m", "Eb7", "F#m7/C#"} {
		c := song.ParseChord(in)
		got := Chord(c, 12, song.SpellingNone)
		if got.Root.PC != c.Root.PC || got.Quality != c.Quality {
			t.Errorf("Chord(%q, 12) changed pitch or quality", in)
		}
	}
}

func TestChordComposition(t *testing.T) {
	// Transposing by a then b equals transposing by a+b.
	c := song.ParseChord("Am7")
	stepwise := Chord(Chord(c, 3, song.SpellingSharp), 4, song.SpellingSharp)
	direct := Chord(c, 7, song.SpellingSharp)
	if stepwise.Name(song.SpellingNone) != direct.Name(song.SpellingNone) {
		t.Errorf("stepwise = %q, direct = %q",
			stepwise.Name(song.SpellingNone), direct.Name(song.SpellingNone))
	}
}

func TestChordOpaquePassthrough(t *testing.T) {
	c := song.Opaque("N.C.")
	got := Chord(c, 5, song.SpellingSharp)
	if !got.IsOpaque() || got.Raw != "N.C." {
		t.Errorf("opaque chord changed: %+v", got)
	}
	if got == c {
		t.Error("opaque chord not cloned")
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		key       string
		semitones int
		pref      song.Spelling
		want      string
	}{
		{"G", 2, song.SpellingSharp, "A"},
		{"F#m", 1, song.SpellingSharp, "Gm"},
		{"Bb", 2, song.SpellingSharp, "C"},
		{"Em", 3, song.SpellingSharp, "Gm"},
		{"A", 1, song.SpellingFlat, "Bb"},
		{"unknown", 3, song.SpellingSharp, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := Key(tt.key, tt.semitones, tt.pref); got != tt.want {
				t.Errorf("Key(%q, %d) = %q, want %q", tt.key, tt.semitones, got, tt.want)
			}
		})
	}
}

func TestSpellingForKey(t *testing.T) {
	tests := []struct {
		name       string
		original   string
		transposed string
		want       song.Spelling
	}{
		{"flat key stays flat", "Bb", "C", song.SpellingFlat},
		{"sharp key stays sharp", "A", "B", song.SpellingSharp},
		{"landing on Eb goes flat", "C", "D#", song.SpellingFlat},
		{"landing on Ab goes flat", "E", "G#", song.SpellingFlat},
		{"landing on Bb goes flat", "G", "A#", song.SpellingFlat},
		{"F sharp prefers sharps", "E", "F#", song.SpellingSharp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := song.MustParseNote(tt.original)
			trans := song.MustParseNote(tt.transposed)
			if got := spellingForKey(orig, trans); got != tt.want {
				t.Errorf("spellingForKey(%s, %s) = %v, want %v", tt.original, tt.transposed, got, tt.want)
			}
		})
	}
}

func testDocument(key string, chords ...string) *song.Document {
	segs := make([]song.Segment, 0, len(chords))
	for _, ch := range chords {
		segs = append(segs, song.Segment{Kind: song.SegmentChord, Chord: song.ParseChord(ch)})
	}
	return &song.Document{
		Metadata: map[string]string{song.MetaKey: key},
		Sections: []song.Section{
			{Kind: song.KindVerse, Lines: []song.Line{{Segments: segs}}},
		},
	}
}

func TestDocument(t *testing.T) {
	d := testDocument("G", "G", "C", "D7", "Em")
	out, summary := Document(d, 2, PolicyAuto)

	if out.Key() != "A" {
		t.Errorf("key = %q, want A", out.Key())
	}
	if summary.Chords != 4 || summary.OpaqueSkipped != 0 {
		t.Errorf("summary = %+v", summary)
	}

	want := []string{"A", "D", "E7", "F#m"}
	for i, seg := range out.Sections[0].Lines[0].Segments {
		if got := seg.Chord.Name(song.SpellingNone); got != want[i] {
			t.Errorf("chord[%d] = %q, want %q", i, got, want[i])
		}
	}

	// Original untouched.
	if d.Key() != "G" {
		t.Error("input document was mutated")
	}
	if got := d.Sections[0].Lines[0].Segments[0].Chord.Name(song.SpellingNone); got != "G" {
		t.Errorf("input chord mutated to %q", got)
	}
}

func TestDocumentAutoFlats(t *testing.T) {
	// Transposing C up 3 lands on Eb, one of the conventional flat keys.
	d := testDocument("C", "C", "F", "G7", "Am")
	out, _ := Document(d, 3, PolicyAuto)

	if out.Key() != "Eb" {
		t.Errorf("key = %q, want Eb", out.Key())
	}
	want := []string{"Eb", "Ab", "Bb7", "Cm"}
	for i, seg := range out.Sections[0].Lines[0].Segments {
		if got := seg.Chord.Name(song.SpellingNone); got != want[i] {
			t.Errorf("chord[%d] = %q, want %q", i, got, want[i])
		}
	}
}

func TestDocumentFlatKeyKeepsFlats(t *testing.T) {
	d := testDocument("Bb", "Bb", "Eb", "F7")
	out, _ := Document(d, 2, PolicyAuto)

	if out.Key() != "C" {
		t.Errorf("key = %q, want C", out.Key())
	}
	// Bb is written flat, so accidentals stay flat after moving to C.
	if got := out.Sections[0].Lines[0].Segments[1].Chord.Name(song.SpellingNone); got != "F" {
		t.Errorf("chord = %q, want F", got)
	}
}

func TestDocumentPolicyOverride(t *testing.T) {
	d := testDocument("C", "A")
	out, _ := Document(d, 1, PolicyFlats)
	if got := out.Sections[0].Lines[0].Segments[0].Chord.Name(song.SpellingNone); got != "Bb" {
		t.Errorf("chord = %q, want Bb", got)
	}

	out, _ = Document(d, 1, PolicySharps)
	if got := out.Sections[0].Lines[0].Segments[0].Chord.Name(song.SpellingNone); got != "A#" {
		t.Errorf("chord = %q, want A#", got)
	}
}

func TestDocumentOpaqueSkipped(t *testing.T) {
	d := testDocument("C", "C", "N.C.", "G")
	out, summary := Document(d, 2, PolicyAuto)

	if summary.Chords != 2 || summary.OpaqueSkipped != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if got := out.Sections[0].Lines[0].Segments[1].Chord.Raw; got != "N.C." {
		t.Errorf("opaque chord changed to %q", got)
	}
}

func TestSemitonesBetween(t *testing.T) {
	tests := []struct {
		from, to string
		want     int
		wantOK   bool
	}{
		{"C", "D", 2, true},
		{"G", "C", 5, true},
		{"Am", "Cm", 3, true},
		{"Bb", "B", 1, true},
		{"C", "C", 0, true},
		{"x", "C", 0, false},
		{"C", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+" to "+tt.to, func(t *testing.T) {
			got, ok := SemitonesBetween(tt.from, tt.to)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("SemitonesBetween(%q, %q) = (%d, %v), want (%d, %v)",
					tt.from, tt.to, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCommonKeysAllSplit(t *testing.T) {
	for _, key := range CommonKeys {
		if _, _, ok := splitKey(key); !ok {
			t.Errorf("common key %q does not split", key)
		}
	}
}
