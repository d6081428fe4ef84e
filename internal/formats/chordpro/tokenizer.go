// Package chordpro parses and renders the ChordPro song format:
// {name: argument} directives, [chord] markers inline in lyric lines,
// # comment lines, and {start_of_X}/{end_of_X} environment pairs.
// Format reference: https://www.chordpro.org/chordpro/
package chordpro

import (
	"strings"
	"unicode/utf8"

	"github.com/openchord/capo/core/errors"
)

// DefaultMaxNestingDepth bounds brace nesting inside directives and
// chord markers. Real songs never nest; the bound exists so adversarial
// input fails fast instead of scanning unboundedly.
const DefaultMaxNestingDepth = 4

// TokenKind identifies the kind of a token.
type TokenKind int

// Token kinds. Comment lines (starting with '#') produce no token at
// all; the tokenizer discards them.
const (
	// TokenDirective is a {name} or {name: argument} directive.
	TokenDirective TokenKind = iota
	// TokenChordMarker is the raw text inside a [chord] marker.
	TokenChordMarker
	// TokenLyricText is a run of lyric text with escapes resolved.
	TokenLyricText
	// TokenLineBreak ends a source line.
	TokenLineBreak
)

// Token is one unit of the flat token stream.
type Token struct {
	Kind TokenKind

	// Name and Arg are set for directives. Name is lowercased.
	Name string
	Arg  string

	// Text is the lyric run for TokenLyricText, or the raw inner text
	// for TokenChordMarker.
	Text string

	// Line is the 1-indexed source line the token started on.
	Line int
}

// tokenizer is a pull scanner over ChordPro source text. The token
// stream is lazy, finite, and consumed exactly once.
type tokenizer struct {
	src         string
	pos         int
	line        int
	maxDepth    int
	atLineStart bool
}

func newTokenizer(src string, maxDepth int) *tokenizer {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxNestingDepth
	}
	return &tokenizer{src: src, line: 1, maxDepth: maxDepth, atLineStart: true}
}

// next returns the next token. ok is false at end of input. Errors are
// always *errors.MalformedInputError and terminate the stream.
func (t *tokenizer) next() (Token, bool, error) {
	for t.pos < len(t.src) {
		// Comment lines are discarded whole, newline included.
		if t.atLineStart && t.src[t.pos] == '#' {
			t.skipLine()
			continue
		}

		switch t.src[t.pos] {
		case '\n':
			tok := Token{Kind: TokenLineBreak, Line: t.line}
			t.pos++
			t.line++
			t.atLineStart = true
			return tok, true, nil
		case '{':
			t.atLineStart = false
			return t.scanDirective()
		case '[':
			t.atLineStart = false
			return t.scanChordMarker()
		default:
			t.atLineStart = false
			return t.scanLyricText()
		}
	}
	return Token{}, false, nil
}

// skipLine consumes through the next newline.
func (t *tokenizer) skipLine() {
	for t.pos < len(t.src) && t.src[t.pos] != '\n' {
		t.pos++
	}
	if t.pos < len(t.src) {
		t.pos++
		t.line++
	}
}

// scanDirective consumes {name} or {name: argument}, tracking brace
// nesting against the depth bound. The closing brace of the outermost
// level ends the directive; nested braces become part of the argument.
func (t *tokenizer) scanDirective() (Token, bool, error) {
	startLine := t.line
	t.pos++ // consume '{'
	depth := 1

	var inner strings.Builder
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		switch c {
		case '{':
			depth++
			if depth > t.maxDepth {
				return Token{}, false, errors.NewMalformedInput("brace nesting too deep in directive", t.line)
			}
			inner.WriteByte(c)
		case '}':
			depth--
			if depth == 0 {
				t.pos++
				name, arg := splitDirective(inner.String())
				return Token{Kind: TokenDirective, Name: name, Arg: arg, Line: startLine}, true, nil
			}
			inner.WriteByte(c)
		case '\n':
			return Token{}, false, errors.NewMalformedInput("unterminated directive", startLine)
		default:
			inner.WriteByte(c)
		}
		t.pos++
	}
	return Token{}, false, errors.NewMalformedInput("unterminated directive", startLine)
}

// splitDirective splits directive inner text into a lowercased name and
// a trimmed argument.
func splitDirective(inner string) (string, string) {
	if idx := strings.IndexByte(inner, ':'); idx >= 0 {
		return strings.ToLower(strings.TrimSpace(inner[:idx])), strings.TrimSpace(inner[idx+1:])
	}
	return strings.ToLower(strings.TrimSpace(inner)), ""
}

// scanChordMarker consumes [text], tracking bracket nesting against the
// depth bound. The marker's raw inner text is preserved verbatim.
func (t *tokenizer) scanChordMarker() (Token, bool, error) {
	startLine := t.line
	t.pos++ // consume '['
	depth := 1

	var inner strings.Builder
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		switch c {
		case '[':
			depth++
			if depth > t.maxDepth {
				return Token{}, false, errors.NewMalformedInput("bracket nesting too deep in chord marker", t.line)
			}
			inner.WriteByte(c)
		case ']':
			depth--
			if depth == 0 {
				t.pos++
				return Token{Kind: TokenChordMarker, Text: inner.String(), Line: startLine}, true, nil
			}
			inner.WriteByte(c)
		case '\n':
			return Token{}, false, errors.NewMalformedInput("unterminated chord marker", startLine)
		default:
			inner.WriteByte(c)
		}
		t.pos++
	}
	return Token{}, false, errors.NewMalformedInput("unterminated chord marker", startLine)
}

// scanLyricText consumes a run of lyric text up to the next structural
// character. Backslash escapes for braces, brackets, and the backslash
// itself resolve to the literal character; any other backslash is kept
// as-is.
func (t *tokenizer) scanLyricText() (Token, bool, error) {
	startLine := t.line

	var text strings.Builder
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		if c == '\n' || c == '{' || c == '[' {
			break
		}
		if c == '\\' && t.pos+1 < len(t.src) {
			switch next := t.src[t.pos+1]; next {
			case '{', '}', '[', ']', '\\':
				text.WriteByte(next)
				t.pos += 2
				continue
			}
		}
		text.WriteByte(c)
		t.pos++
	}
	return Token{Kind: TokenLyricText, Text: text.String(), Line: startLine}, true, nil
}

// Tokenize fully materializes the token stream. Intended for tests; the
// parser consumes tokens lazily.
func Tokenize(text string, maxDepth int) ([]Token, error) {
	if !utf8.ValidString(text) {
		return nil, errors.NewMalformedInput("not valid UTF-8", 0)
	}
	tk := newTokenizer(text, maxDepth)
	var out []Token
	for {
		tok, ok, err := tk.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, tok)
	}
}
