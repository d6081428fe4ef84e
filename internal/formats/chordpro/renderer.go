package chordpro

import (
	"sort"
	"strings"

	"github.com/openchord/capo/core/song"
)

// metaOrder is the emission order for recognized metadata directives.
// Remaining metadata and flags follow alphabetically, so rendering is
// deterministic.
var metaOrder = []string{
	song.MetaTitle,
	song.MetaSubtitle,
	song.MetaArtist,
	song.MetaComposer,
	song.MetaKey,
	song.MetaCapo,
	song.MetaTempo,
	song.MetaTime,
	song.MetaDuration,
}

// lyricEscaper protects structural characters in lyric text.
var lyricEscaper = strings.NewReplacer(
	`\`, `\\`,
	"{", `\{`,
	"}", `\}`,
	"[", `\[`,
	"]", `\]`,
)

// Render serializes a document back to ChordPro text. It is the
// structural inverse of Parse: re-parsing the output yields a
// structurally equal document. Original whitespace and comment lines do
// not survive the round trip.
func Render(d *song.Document) string {
	var sb strings.Builder

	renderMetadata(&sb, d)

	// A separating blank line is only safe after the metadata block or
	// a closed environment; after body content it would re-parse as an
	// extra empty body line.
	separatorSafe := sb.Len() > 0
	for _, sec := range d.Sections {
		if separatorSafe {
			sb.WriteString("\n")
		}
		renderSection(&sb, &sec)
		separatorSafe = sec.Kind != song.KindBody
	}
	return sb.String()
}

func renderMetadata(sb *strings.Builder, d *song.Document) {
	emitted := map[string]bool{}
	for _, name := range metaOrder {
		if v, ok := d.Metadata[name]; ok {
			sb.WriteString("{" + name + ": " + v + "}\n")
			emitted[name] = true
		}
	}

	var rest []string
	for name := range d.Metadata {
		if !emitted[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		sb.WriteString("{" + name + ": " + d.Metadata[name] + "}\n")
	}

	var flags []string
	for name := range d.Flags {
		flags = append(flags, name)
	}
	sort.Strings(flags)
	for _, name := range flags {
		sb.WriteString("{" + name + "}\n")
	}
}

func renderSection(sb *strings.Builder, sec *song.Section) {
	wrapped := sec.Kind != song.KindBody
	if wrapped {
		sb.WriteString("{start_of_" + string(sec.Kind))
		if sec.Label != "" {
			sb.WriteString(": " + sec.Label)
		}
		sb.WriteString("}\n")
	}

	for _, line := range sec.Lines {
		renderLine(sb, &line)
		sb.WriteString("\n")
	}

	if wrapped {
		sb.WriteString("{end_of_" + string(sec.Kind) + "}\n")
	}
}

// renderLine re-inlines chord markers at their anchors. Segments are
// already interleaved in anchor order, so emission is a single pass.
func renderLine(sb *strings.Builder, line *song.Line) {
	for _, seg := range line.Segments {
		switch seg.Kind {
		case song.SegmentText:
			sb.WriteString(lyricEscaper.Replace(seg.Text))
		case song.SegmentChord:
			sb.WriteString("[" + seg.Chord.String() + "]")
		}
	}
}
