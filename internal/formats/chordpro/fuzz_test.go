package chordpro

import (
	"testing"
	"unicode/utf8"

	"github.com/openchord/capo/core/song"
)

// FuzzParse tests the ChordPro parser with fuzzing
func FuzzParse(f *testing.F) {
	// Seed corpus with representative songs
	f.Add("{title: Test}\n{key: G}\n[G]Hello [C]world\n")
	f.Add("{start_of_verse}\n[Am7]line one\nline two\n{end_of_verse}\n")
	f.Add("{soc}\nchorus text\n{eoc}\n")
	f.Add("# comment\nplain lyrics\n")
	f.Add("{t: Short}\n{st: Sub}\n{a: Artist}\n")
	f.Add(`escaped \[not a chord\] and \{not a directive\}` + "\n")
	f.Add("[N.C.]opaque [G/B]slash [F#m7/C#]sharp\n")
	f.Add("{start_of_verse}\nunclosed\n")
	f.Add("{end_of_chorus}\n")
	f.Add("[]empty chord\n")
	f.Add("")
	f.Add("\n\n\n")
	f.Add("{c: a comment line}\n")
	f.Add("{start_of_tab}\ne|--0--2--|\n{end_of_tab}\n")

	f.Fuzz(func(t *testing.T, input string) {
		// The parser should not panic on any input
		doc, diags, err := Parse(input, Options{})

		if err != nil {
			// Errors only for byte-level malformed input; no document
			// comes back alongside one.
			if doc != nil {
				t.Error("Parse returned both a document and an error")
			}
			return
		}
		if doc == nil {
			t.Fatal("Parse returned neither a document nor an error")
		}

		// Diagnostics carry a kind
		for i, d := range diags {
			if d.Kind == "" {
				t.Errorf("diagnostic %d has empty kind", i)
			}
		}

		// A successful parse always satisfies the document invariants
		if errs := song.ValidateDocument(doc); len(errs) > 0 {
			t.Errorf("parsed document fails validation: %v", errs)
		}

		// Rendering a parsed document must produce parseable text that
		// parses back without new structural errors
		rendered := Render(doc)
		if !utf8.ValidString(rendered) {
			t.Error("Render produced invalid UTF-8 from valid input")
		}
		doc2, _, err := Parse(rendered, Options{})
		if err != nil {
			t.Errorf("re-parse of rendered output failed: %v\nrendered: %q", err, rendered)
		}
		if err == nil {
			if errs := song.ValidateDocument(doc2); len(errs) > 0 {
				t.Errorf("re-parsed document fails validation: %v", errs)
			}
		}
	})
}

// FuzzTokenize tests the tokenizer with fuzzing
func FuzzTokenize(f *testing.F) {
	f.Add("{title: X}\n[C]lyric\n", 0)
	f.Add("{a{b{c}}}", 2)
	f.Add("[[[[deep]]]]", 3)
	f.Add(`\{\}\[\]\\`, 0)
	f.Add("# comment only\n", 0)
	f.Add("", 0)

	f.Fuzz(func(t *testing.T, input string, maxDepth int) {
		// The tokenizer should not panic on any input or depth bound
		tokens, err := Tokenize(input, maxDepth)
		if err != nil {
			return
		}
		for i, tok := range tokens {
			if tok.Line < 1 {
				t.Errorf("token %d has line %d", i, tok.Line)
			}
		}
	})
}

// FuzzParseChord tests the chord grammar with fuzzing
func FuzzParseChord(f *testing.F) {
	f.Add("C")
	f.Add("Am7")
	f.Add("F#m7/C#")
	f.Add("Bbmaj7")
	f.Add("N.C.")
	f.Add("Xadd9")
	f.Add("")
	f.Add("H7")
	f.Add("C7alt")
	f.Add("G/B")

	f.Fuzz(func(t *testing.T, input string) {
		// ParseChord never fails and never panics
		c := song.ParseChord(input)
		if c == nil {
			t.Fatal("ParseChord returned nil")
		}
		if c.IsOpaque() {
			if c.Raw != input {
				t.Errorf("opaque chord Raw = %q, want %q", c.Raw, input)
			}
			return
		}
		if c.Root.PC < 0 || c.Root.PC > 11 {
			t.Errorf("root pitch class %d out of range", c.Root.PC)
		}
		if c.Bass != nil && (c.Bass.PC < 0 || c.Bass.PC > 11) {
			t.Errorf("bass pitch class %d out of range", c.Bass.PC)
		}
	})
}
