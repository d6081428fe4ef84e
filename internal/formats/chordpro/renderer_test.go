package chordpro

import (
	"reflect"
	"testing"

	"github.com/openchord/capo/core/song"
)

func TestRender(t *testing.T) {
	text := "{title: Amazing Grace}\n" +
		"{key: G}\n" +
		"\n" +
		"{start_of_verse}\n" +
		"[G]Amazing [G7]grace\n" +
		"{end_of_verse}\n"

	doc, _ := mustParse(t, text)
	if got := Render(doc); got != text {
		t.Errorf("Render() =\n%q\nwant\n%q", got, text)
	}
}

func TestRenderMetadataOrder(t *testing.T) {
	doc := &song.Document{
		Metadata: map[string]string{
			"zzz_custom":   "last",
			song.MetaKey:   "C",
			song.MetaTitle: "T",
			"aaa_custom":   "first",
		},
		Flags: map[string]bool{"no_grid": true, "break": true},
	}

	want := "{title: T}\n" +
		"{key: C}\n" +
		"{aaa_custom: first}\n" +
		"{zzz_custom: last}\n" +
		"{break}\n" +
		"{no_grid}\n"
	if got := Render(doc); got != want {
		t.Errorf("Render() =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderLyricEscapes(t *testing.T) {
	doc := &song.Document{
		Sections: []song.Section{{Kind: song.KindBody, Lines: []song.Line{
			{Segments: []song.Segment{
				{Kind: song.SegmentText, Text: `a [b] {c} d\e`},
			}},
		}}},
	}
	want := `a \[b\] \{c\} d\\e` + "\n"
	if got := Render(doc); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderOpaqueChordVerbatim(t *testing.T) {
	doc := &song.Document{
		Sections: []song.Section{{Kind: song.KindBody, Lines: []song.Line{
			{Segments: []song.Segment{
				{Kind: song.SegmentChord, Chord: song.Opaque("N.C.")},
				{Kind: song.SegmentText, Text: "rest"},
			}},
		}}},
	}
	want := "[N.C.]rest\n"
	if got := Render(doc); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderSectionLabel(t *testing.T) {
	doc := &song.Document{
		Sections: []song.Section{{Kind: song.KindVerse, Label: "1", Lines: []song.Line{
			{Segments: []song.Segment{{Kind: song.SegmentText, Text: "x"}}},
		}}},
	}
	want := "{start_of_verse: 1}\nx\n{end_of_verse}\n"
	if got := Render(doc); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

// TestRoundTrip re-parses rendered output and expects a structurally
// equal document.
func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"{title: T}\n",
		"[C]hello [G]world\n",
		"{title: T}\n{start_of_verse}\n[Am7]line one\n\nline two\n{end_of_verse}\n",
		"body first\n{start_of_chorus}\nthen chorus\n{end_of_chorus}\n",
		"{start_of_verse: 2}\n[F#m7/C#]complex [N.C.]chords\n{end_of_verse}\n",
		"{x_flag}\n{x_meta: v}\nlyrics with \\[escapes\\]\n",
		"a[]b\n",
		"{start_of_tab}\ne|--0--|\n{end_of_tab}\n{start_of_verse}\nafter\n{end_of_verse}\n",
	}

	for _, input := range inputs {
		doc1, _, err := Parse(input, Options{})
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", input, err)
		}
		rendered := Render(doc1)
		doc2, _, err := Parse(rendered, Options{})
		if err != nil {
			t.Fatalf("re-Parse of %q failed: %v", rendered, err)
		}
		if !reflect.DeepEqual(doc1, doc2) {
			t.Errorf("round trip changed document for %q:\nrendered: %q\nfirst:  %+v\nsecond: %+v",
				input, rendered, doc1, doc2)
		}
	}
}

func TestRenderEmptyChordMarker(t *testing.T) {
	doc, _, err := Parse("a[]b\n", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := Render(doc); got != "a[]b\n" {
		t.Errorf("Render = %q, want the empty marker preserved", got)
	}
}

func TestRoundTripIsStable(t *testing.T) {
	// Render(Parse(Render(Parse(x)))) equals Render(Parse(x)).
	input := "  {Title:  Spaced  }\n# comment\n[C]one\n\n\n{soc}\nchorus\n{eoc}\n"
	doc, _, err := Parse(input, Options{})
	if err != nil {
		t.Fatal(err)
	}
	first := Render(doc)
	doc2, _, err := Parse(first, Options{})
	if err != nil {
		t.Fatal(err)
	}
	second := Render(doc2)
	if first != second {
		t.Errorf("rendering not stable:\nfirst:  %q\nsecond: %q", first, second)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"directive", "{title: X}\n", true},
		{"chord marker", "la la [C] la\n", true},
		{"plain text", "just some lyrics\nmore lyrics\n", false},
		{"comment only", "# {not a directive}\n", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect([]byte(tt.data)); got != tt.want {
				t.Errorf("Detect(%q) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}
