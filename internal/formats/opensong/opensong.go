// Package opensong imports OpenSong XML song files into the document
// model. OpenSong writes chords on their own line above the lyrics;
// the importer converts those column positions into inline chord
// anchors.
package opensong

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/openchord/capo/core/errors"
	"github.com/openchord/capo/core/song"
)

// Precompiled queries against the OpenSong document shape.
var (
	titleQuery  = xpath.MustCompile("//song/title")
	authorQuery = xpath.MustCompile("//song/author")
	keyQuery    = xpath.MustCompile("//song/key")
	capoQuery   = xpath.MustCompile("//song/capo")
	tempoQuery  = xpath.MustCompile("//song/tempo")
	timeQuery   = xpath.MustCompile("//song/timesig")
	lyricsQuery = xpath.MustCompile("//song/lyrics")
)

// sectionMarkers maps OpenSong section letters to section kinds.
var sectionMarkers = map[byte]song.SectionKind{
	'V': song.KindVerse,
	'C': song.KindChorus,
	'B': song.KindBridge,
	'P': song.KindPreChorus,
	'T': song.KindTag,
	'I': song.KindIntro,
	'O': song.KindOutro,
}

// Detect reports whether the data looks like an OpenSong XML file.
func Detect(data []byte) bool {
	return bytes.Contains(data, []byte("<song")) && bytes.Contains(data, []byte("<lyrics"))
}

// Parse converts OpenSong XML data into a song document.
func Parse(data []byte) (*song.Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewMalformedInput("invalid OpenSong XML: "+err.Error(), 0)
	}

	doc := &song.Document{
		Metadata: map[string]string{},
		Flags:    map[string]bool{},
	}

	setMeta := func(name string, q *xpath.Expr) {
		if node := xmlquery.QuerySelector(root, q); node != nil {
			if v := strings.TrimSpace(node.InnerText()); v != "" {
				doc.Metadata[name] = v
			}
		}
	}
	setMeta(song.MetaTitle, titleQuery)
	setMeta(song.MetaArtist, authorQuery)
	setMeta(song.MetaKey, keyQuery)
	setMeta(song.MetaCapo, capoQuery)
	setMeta(song.MetaTempo, tempoQuery)
	setMeta(song.MetaTime, timeQuery)

	lyricsNode := xmlquery.QuerySelector(root, lyricsQuery)
	if lyricsNode == nil {
		return nil, errors.NewMalformedInput("OpenSong file has no lyrics element", 0)
	}

	doc.Sections = parseLyrics(lyricsNode.InnerText())
	return doc, nil
}

// parseLyrics walks the OpenSong lyric block: '[X]' section headings,
// '.'-prefixed chord lines, ' '-prefixed (or bare) lyric lines, and
// ';'-prefixed comments (dropped).
func parseLyrics(lyrics string) []song.Section {
	var sections []song.Section
	var current *song.Section
	var pendingChords string
	havePending := false

	flushSection := func() {
		if current != nil && len(current.Lines) > 0 {
			sections = append(sections, *current)
		}
		current = nil
	}
	appendLine := func(line song.Line) {
		if current == nil {
			current = &song.Section{Kind: song.KindBody}
		}
		current.Lines = append(current.Lines, line)
	}
	flushPending := func(lyric string) {
		if !havePending && strings.TrimSpace(lyric) == "" {
			return
		}
		var chordLine string
		if havePending {
			chordLine = pendingChords
		}
		appendLine(mergeLine(chordLine, lyric))
		havePending = false
	}

	for _, raw := range strings.Split(lyrics, "\n") {
		line := strings.TrimRight(raw, "\r")
		switch {
		case strings.HasPrefix(line, "["):
			flushPending("")
			flushSection()
			kind, label := parseSectionMarker(line)
			current = &song.Section{Kind: kind, Label: label}
		case strings.HasPrefix(line, "."):
			// Two chord lines in a row: the first has no lyric.
			flushPending("")
			pendingChords = line[1:]
			havePending = true
		case strings.HasPrefix(line, ";"):
			// Comment line.
		case strings.TrimSpace(line) == "":
			flushPending("")
		default:
			lyric := strings.TrimPrefix(line, " ")
			flushPending(lyric)
		}
	}
	flushPending("")
	flushSection()
	return sections
}

// parseSectionMarker parses "[V1]" style headings. Unknown letters fall
// back to a verse.
func parseSectionMarker(line string) (song.SectionKind, string) {
	inner := strings.TrimSpace(strings.Trim(line, "[] "))
	if inner == "" {
		return song.KindVerse, ""
	}
	letter := inner[0]
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	kind, ok := sectionMarkers[letter]
	if !ok {
		return song.KindVerse, inner
	}
	return kind, strings.TrimSpace(inner[1:])
}

// mergeLine converts a chord-over-lyric pair into a single line with
// inline anchors. Each chord anchors at its column in the chord line,
// clamped to the lyric length so the anchor invariants hold.
func mergeLine(chordLine, lyric string) song.Line {
	lyricLen := utf8.RuneCountInString(lyric)

	var segments []song.Segment
	col := 0
	start := -1
	token := ""
	flushChord := func() {
		if start < 0 {
			return
		}
		offset := start
		if offset > lyricLen {
			offset = lyricLen
		}
		segments = append(segments, song.Segment{
			Kind:   song.SegmentChord,
			Chord:  song.ParseChord(token),
			Offset: offset,
		})
		start = -1
		token = ""
	}
	for _, r := range chordLine {
		if r == ' ' || r == '|' {
			flushChord()
		} else {
			if start < 0 {
				start = col
			}
			token += string(r)
		}
		col++
	}
	flushChord()

	// Chord segments must appear before the text they anchor into.
	// Anchors here are clamped, so splitting the text at each anchor
	// keeps segment order consistent with the inline representation.
	if lyric == "" {
		return song.Line{Segments: segments}
	}

	var out []song.Segment
	runes := []rune(lyric)
	prev := 0
	for _, seg := range segments {
		if seg.Offset > prev {
			out = append(out, song.Segment{Kind: song.SegmentText, Text: string(runes[prev:seg.Offset])})
			prev = seg.Offset
		}
		out = append(out, seg)
	}
	if prev < len(runes) {
		out = append(out, song.Segment{Kind: song.SegmentText, Text: string(runes[prev:])})
	}
	return song.Line{Segments: out}
}
