package chordpro

import (
	"strings"
	"unicode/utf8"

	"github.com/openchord/capo/core/errors"
	"github.com/openchord/capo/core/song"
)

// Options configures parsing.
type Options struct {
	// Strict escalates the first structural diagnostic to an error
	// instead of recovering. Chord-grammar degradation to opaque
	// chords stays informational even in strict mode.
	Strict bool

	// MaxNestingDepth bounds brace/bracket nesting in the tokenizer.
	// Zero means DefaultMaxNestingDepth.
	MaxNestingDepth int
}

// sectionAliases maps environment kind text to section kinds, including
// the single-letter shorthand the original format allows.
var sectionAliases = map[string]song.SectionKind{
	"verse":      song.KindVerse,
	"v":          song.KindVerse,
	"chorus":     song.KindChorus,
	"c":          song.KindChorus,
	"bridge":     song.KindBridge,
	"b":          song.KindBridge,
	"tab":        song.KindTab,
	"t":          song.KindTab,
	"grid":       song.KindGrid,
	"prechorus":  song.KindPreChorus,
	"pre-chorus": song.KindPreChorus,
	"pc":         song.KindPreChorus,
	"intro":      song.KindIntro,
	"outro":      song.KindOutro,
	"interlude":  song.KindInterlude,
	"tag":        song.KindTag,
	"ending":     song.KindEnding,
	"coda":       song.KindEnding,
}

// metaAliases maps short directive names to their canonical metadata
// keys.
var metaAliases = map[string]string{
	"t":  song.MetaTitle,
	"st": song.MetaSubtitle,
	"a":  song.MetaArtist,
}

// sectionDirective recognizes {start_of_X}/{soX} and {end_of_X}/{eoX}
// directive names. It returns the section kind, whether the directive
// opens (rather than closes) a section, and whether the name was an
// environment directive at all. An environment directive with an
// unknown kind returns ok=true with an invalid kind, so the caller can
// diagnose it.
func sectionDirective(name string) (kind song.SectionKind, start, ok bool) {
	switch {
	case strings.HasPrefix(name, "start_of_"):
		rest := name[len("start_of_"):]
		if k, known := sectionAliases[rest]; known {
			return k, true, true
		}
		return song.SectionKind(rest), true, true
	case strings.HasPrefix(name, "end_of_"):
		rest := name[len("end_of_"):]
		if k, known := sectionAliases[rest]; known {
			return k, false, true
		}
		return song.SectionKind(rest), false, true
	}

	// Short forms soX/eoX only count as environment directives when X
	// is a known kind; {solo} must stay an ordinary directive.
	if len(name) > 2 {
		if k, known := sectionAliases[name[2:]]; known {
			switch name[:2] {
			case "so":
				return k, true, true
			case "eo":
				return k, false, true
			}
		}
	}
	return "", false, false
}

// lineBuilder accumulates one lyric line. Chord anchors are the rune
// length of the lyric text accumulated so far, which makes the anchor
// invariants hold by construction.
type lineBuilder struct {
	segments []song.Segment
	lyricLen int
}

func (b *lineBuilder) addText(text string) {
	if text == "" {
		return
	}
	b.lyricLen += utf8.RuneCountInString(text)
	// Merge adjacent text runs (escapes split the token stream).
	if n := len(b.segments); n > 0 && b.segments[n-1].Kind == song.SegmentText {
		b.segments[n-1].Text += text
		return
	}
	b.segments = append(b.segments, song.Segment{Kind: song.SegmentText, Text: text})
}

func (b *lineBuilder) addChord(c *song.Chord) {
	b.segments = append(b.segments, song.Segment{
		Kind:   song.SegmentChord,
		Chord:  c,
		Offset: b.lyricLen,
	})
}

func (b *lineBuilder) empty() bool { return len(b.segments) == 0 }

func (b *lineBuilder) take() song.Line {
	line := song.Line{Segments: b.segments}
	b.segments = nil
	b.lyricLen = 0
	return line
}

// parser is the section-stack state machine over the token stream.
type parser struct {
	opts  Options
	doc   *song.Document
	diags []song.Diagnostic

	// stack holds the open explicit sections; the implicit body
	// section is tracked separately because it is created lazily and
	// never closed by a directive.
	stack []song.Section
	body  *song.Section

	line       lineBuilder
	sawContent bool
	sawLine    bool
}

// Parse parses ChordPro text leniently: structural problems are
// collected as diagnostics and recovery continues. Only malformed
// byte-level input (non-UTF-8, nesting beyond the bound) returns an
// error.
func Parse(text string, opts Options) (*song.Document, []song.Diagnostic, error) {
	if !utf8.ValidString(text) {
		return nil, nil, errors.NewMalformedInput("not valid UTF-8", 0)
	}

	p := &parser{
		opts: opts,
		doc: &song.Document{
			Metadata: map[string]string{},
			Flags:    map[string]bool{},
		},
	}

	tk := newTokenizer(text, opts.MaxNestingDepth)
	for {
		tok, ok, err := tk.next()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		if err := p.consume(tok); err != nil {
			return nil, nil, err
		}
	}
	if err := p.finish(); err != nil {
		return nil, nil, err
	}
	return p.doc, p.diags, nil
}

// ParseStrict parses ChordPro text, failing on the first structural
// diagnostic with an error carrying the same information.
func ParseStrict(text string, opts Options) (*song.Document, error) {
	opts.Strict = true
	doc, _, err := Parse(text, opts)
	return doc, err
}

// diag records a diagnostic, or converts it to a terminating error in
// strict mode. Informational kinds never terminate.
func (p *parser) diag(d song.Diagnostic) error {
	informational := d.Kind == song.DiagOpaqueChord || d.Kind == song.DiagEmptyChord
	if p.opts.Strict && !informational {
		return errors.NewStrictParse(string(d.Kind), d.Line, d.Context)
	}
	p.diags = append(p.diags, d)
	return nil
}

func (p *parser) consume(tok Token) error {
	switch tok.Kind {
	case TokenDirective:
		p.sawLine = true
		return p.directive(tok)
	case TokenChordMarker:
		p.sawLine = true
		p.sawContent = true
		chord := song.ParseChord(tok.Text)
		p.line.addChord(chord)
		if !chord.IsOpaque() {
			return nil
		}
		if strings.TrimSpace(tok.Text) == "" {
			return p.diag(song.Diagnostic{Kind: song.DiagEmptyChord, Line: tok.Line})
		}
		return p.diag(song.Diagnostic{Kind: song.DiagOpaqueChord, Line: tok.Line, Context: tok.Text})
	case TokenLyricText:
		p.sawLine = true
		if tok.Text != "" {
			p.sawContent = true
		}
		p.line.addText(tok.Text)
		return nil
	case TokenLineBreak:
		p.endLine()
		return nil
	}
	return nil
}

// endLine finishes the current physical line. Lines with content flush
// the built lyric line; completely blank lines become empty lines when
// a section is open, and are dropped at top level.
func (p *parser) endLine() {
	defer func() {
		p.sawContent = false
		p.sawLine = false
	}()

	if p.sawContent || !p.line.empty() {
		p.appendLine(p.line.take())
		return
	}
	if !p.sawLine && p.open() != nil {
		p.appendLine(song.Line{})
	}
}

// open returns the section content currently appends to, or nil at top
// level before any body content.
func (p *parser) open() *song.Section {
	if n := len(p.stack); n > 0 {
		return &p.stack[n-1]
	}
	return p.body
}

// appendLine adds a line to the open section, lazily creating the
// implicit body section at top level.
func (p *parser) appendLine(line song.Line) {
	if sec := p.open(); sec != nil {
		sec.Lines = append(sec.Lines, line)
		return
	}
	p.body = &song.Section{Kind: song.KindBody, Lines: []song.Line{line}}
}

func (p *parser) directive(tok Token) error {
	if kind, start, ok := sectionDirective(tok.Name); ok {
		if !kind.IsValid() || kind == song.KindBody {
			return p.diag(song.Diagnostic{
				Kind:    song.DiagUnknownSection,
				Line:    tok.Line,
				Context: tok.Name,
			})
		}
		if start {
			p.flushLine()
			p.flushBody()
			p.stack = append(p.stack, song.Section{Kind: kind, Label: tok.Arg})
			return nil
		}
		return p.closeSection(kind, tok)
	}

	name := tok.Name
	if canonical, ok := metaAliases[name]; ok {
		name = canonical
	}

	// The comment directive carries display text, not metadata: it
	// becomes a lyric-only line in the open section.
	if name == "c" || name == "comment" {
		if p.open() != nil && tok.Arg != "" {
			p.appendLine(song.Line{Segments: []song.Segment{
				{Kind: song.SegmentText, Text: tok.Arg},
			}})
		}
		return nil
	}

	if tok.Arg == "" {
		p.doc.Flags[name] = true
		return nil
	}
	p.doc.Metadata[name] = tok.Arg
	return nil
}

// closeSection handles an end_of_X directive against the section stack.
// A matching kind pops normally. A mismatch is diagnosed and, in lenient
// mode, still pops as best-effort recovery (the directive is treated as
// closing the current section).
func (p *parser) closeSection(kind song.SectionKind, tok Token) error {
	p.flushLine()
	if len(p.stack) == 0 {
		return p.diag(song.Diagnostic{
			Kind:    song.DiagUnbalancedSection,
			Line:    tok.Line,
			Context: tok.Name,
			Found:   kind,
		})
	}

	top := p.stack[len(p.stack)-1]
	if top.Kind != kind {
		if err := p.diag(song.Diagnostic{
			Kind:     song.DiagUnbalancedSection,
			Line:     tok.Line,
			Context:  tok.Name,
			Expected: top.Kind,
			Found:    kind,
		}); err != nil {
			return err
		}
	}

	p.stack = p.stack[:len(p.stack)-1]
	p.doc.Sections = append(p.doc.Sections, top)
	return nil
}

// flushLine appends the partially built line to the section that is
// open right now, so text preceding a section directive on the same
// physical line stays with the section it was written in.
func (p *parser) flushLine() {
	if p.line.empty() {
		return
	}
	p.appendLine(p.line.take())
	p.sawContent = false
}

// flushBody closes the implicit body section before an explicit section
// opens.
func (p *parser) flushBody() {
	if p.body != nil {
		p.doc.Sections = append(p.doc.Sections, *p.body)
		p.body = nil
	}
}

// finish flushes the final line and auto-closes anything still open. An
// unclosed explicit section is a diagnostic in lenient mode and a
// failure in strict mode.
func (p *parser) finish() error {
	if !p.line.empty() {
		p.appendLine(p.line.take())
	}

	for len(p.stack) > 0 {
		top := p.stack[len(p.stack)-1]
		if err := p.diag(song.Diagnostic{
			Kind:     song.DiagUnclosedSection,
			Context:  string(top.Kind),
			Expected: top.Kind,
		}); err != nil {
			return err
		}
		p.stack = p.stack[:len(p.stack)-1]
		p.doc.Sections = append(p.doc.Sections, top)
	}
	p.flushBody()
	return nil
}
