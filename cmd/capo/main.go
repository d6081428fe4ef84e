// Command capo is the CLI tool for the openchord toolkit. It parses,
// transposes, and renders ChordPro songs, and manages a SQLite-backed
// songbook.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/openchord/capo/core/errors"
	"github.com/openchord/capo/core/song"
	"github.com/openchord/capo/core/sqlite"
	"github.com/openchord/capo/core/transpose"
	"github.com/openchord/capo/internal/bundle"
	"github.com/openchord/capo/internal/formats/chordpro"
	"github.com/openchord/capo/internal/formats/opensong"
	"github.com/openchord/capo/internal/logging"
	"github.com/openchord/capo/internal/songbook"
)

const version = "0.1.0"

// CLI defines the command-line interface for capo.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" help:"Log output format"`

	// Command groups (noun-first organization)
	Song    SongGroup  `cmd:"" help:"Operations on single ChordPro files"`
	Book    BookGroup  `cmd:"" help:"Songbook database operations"`
	Convert ConvertCmd `cmd:"" help:"Convert a foreign song format to ChordPro"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// SongGroup contains single-file operations.
type SongGroup struct {
	Parse     ParseCmd         `cmd:"" help:"Parse a file and dump its document structure"`
	Render    RenderCmd        `cmd:"" help:"Parse and re-render a file (normalizes formatting)"`
	Transpose SongTransposeCmd `cmd:"" help:"Transpose a file by semitones or to a target key"`
	Strip     StripCmd         `cmd:"" help:"Print lyrics with chords and directives stripped"`
	Check     CheckCmd         `cmd:"" help:"Strict-parse a file and report the first problem"`
}

// BookGroup contains songbook operations.
type BookGroup struct {
	DB string `name:"db" default:"songbook.db" help:"Songbook database path" type:"path"`

	Add       BookAddCmd       `cmd:"" help:"Add a ChordPro file to the songbook"`
	List      BookListCmd      `cmd:"" help:"List stored songs"`
	Show      BookShowCmd      `cmd:"" help:"Print a stored song"`
	Search    BookSearchCmd    `cmd:"" help:"Search songs by title or first line"`
	Remove    BookRemoveCmd    `cmd:"" help:"Remove a stored song"`
	Transpose BookTransposeCmd `cmd:"" help:"Transpose a stored song in place"`
	Favorite  BookFavoriteCmd  `cmd:"" help:"Mark or unmark a song as a favorite"`
	Tag       BookTagCmd       `cmd:"" help:"Attach or detach a song tag"`
	History   BookHistoryCmd   `cmd:"" help:"List recently shown songs"`
	Export    BookExportCmd    `cmd:"" help:"Export the songbook to a bundle archive"`
	Import    BookImportCmd    `cmd:"" help:"Import songs from a bundle archive"`
}

func (g *BookGroup) open() (*songbook.Store, error) {
	return songbook.Open(g.DB)
}

// ParseCmd parses a file and dumps the document.
type ParseCmd struct {
	Path string `arg:"" help:"ChordPro file to parse" type:"existingfile"`
	JSON bool   `help:"Emit the document as JSON"`
}

func (c *ParseCmd) Run() error {
	doc, diags, err := parseFile(c.Path)
	if err != nil {
		return err
	}

	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "warning: line %d: %s: %s\n", d.Line, d.Kind, d.Context)
	}

	if c.JSON {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode document")
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("title:    %s\n", doc.Title())
	if artist := doc.Artist(); artist != "" {
		fmt.Printf("artist:   %s\n", artist)
	}
	if key := doc.Key(); key != "" {
		fmt.Printf("key:      %s\n", key)
	}
	fmt.Printf("sections: %d\n", len(doc.Sections))
	for _, sec := range doc.Sections {
		label := ""
		if sec.Label != "" {
			label = " (" + sec.Label + ")"
		}
		fmt.Printf("  %s%s: %d lines\n", sec.Kind, label, len(sec.Lines))
	}
	return nil
}

// RenderCmd parses then re-renders a file.
type RenderCmd struct {
	Path string `arg:"" help:"ChordPro file to render" type:"existingfile"`
	Out  string `short:"o" help:"Output path (default stdout)" type:"path"`
}

func (c *RenderCmd) Run() error {
	doc, _, err := parseFile(c.Path)
	if err != nil {
		return err
	}
	return emit(c.Out, chordpro.Render(doc))
}

// SongTransposeCmd transposes a file.
type SongTransposeCmd struct {
	Path      string `arg:"" help:"ChordPro file to transpose" type:"existingfile"`
	Semitones int    `short:"s" help:"Semitone delta (positive = up)" xor:"delta"`
	ToKey     string `name:"to-key" help:"Target key (overrides --semitones)" xor:"delta"`
	Spelling  string `default:"auto" enum:"auto,sharps,flats" help:"Accidental spelling policy"`
	Out       string `short:"o" help:"Output path (default stdout)" type:"path"`
}

func (c *SongTransposeCmd) Run() error {
	doc, _, err := parseFile(c.Path)
	if err != nil {
		return err
	}

	semitones := c.Semitones
	if c.ToKey != "" {
		from := doc.Key()
		if from == "" {
			return errors.NewValidation("to-key", "song has no key metadata to transpose from")
		}
		delta, ok := transpose.SemitonesBetween(from, c.ToKey)
		if !ok {
			return errors.NewValidation("to-key", fmt.Sprintf("cannot transpose from %q to %q", from, c.ToKey))
		}
		semitones = delta
	}

	out, summary := transpose.Document(doc, semitones, spellingPolicy(c.Spelling))
	logging.TransposeEvent(semitones, summary.Chords, summary.OpaqueSkipped, "path", c.Path)
	if summary.OpaqueSkipped > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d unparseable chord(s) left unchanged\n", summary.OpaqueSkipped)
	}
	return emit(c.Out, chordpro.Render(out))
}

// StripCmd prints plain lyrics.
type StripCmd struct {
	Path string `arg:"" help:"ChordPro file to strip" type:"existingfile"`
}

func (c *StripCmd) Run() error {
	doc, _, err := parseFile(c.Path)
	if err != nil {
		return err
	}
	fmt.Println(doc.PlainText())
	return nil
}

// CheckCmd strict-parses a file.
type CheckCmd struct {
	Path string `arg:"" help:"ChordPro file to check" type:"existingfile"`
}

func (c *CheckCmd) Run() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return errors.NewIO("read", c.Path, err)
	}
	doc, err := chordpro.ParseStrict(string(data), chordpro.Options{})
	if err != nil {
		return err
	}
	if errs := song.ValidateDocument(doc); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "invalid: %v\n", e)
		}
		return errors.NewValidation("document", fmt.Sprintf("%d validation error(s)", len(errs)))
	}
	fmt.Println("ok")
	return nil
}

// BookAddCmd adds a file to the songbook.
type BookAddCmd struct {
	Path string `arg:"" help:"ChordPro file to add" type:"existingfile"`
}

func (c *BookAddCmd) Run(g *BookGroup) error {
	store, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return errors.NewIO("read", c.Path, err)
	}
	sng, err := store.Add(string(data))
	if err != nil {
		return err
	}
	fmt.Printf("added %s: %s\n", sng.ID, sng.Title)
	return nil
}

// BookListCmd lists stored songs, optionally filtered to favorites or
// to a tag.
type BookListCmd struct {
	Favorites bool   `help:"Only list favorite songs"`
	Tag       string `help:"Only list songs carrying this tag"`
}

func (c *BookListCmd) Run(g *BookGroup) error {
	store, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	var songs []*songbook.Song
	switch {
	case c.Favorites:
		songs, err = store.Favorites()
	case c.Tag != "":
		songs, err = store.SongsByTag(c.Tag)
	default:
		songs, err = store.List()
	}
	if err != nil {
		return err
	}
	printSongs(songs)
	return nil
}

// BookShowCmd prints a stored song.
type BookShowCmd struct {
	ID string `arg:"" help:"Song ID"`
}

func (c *BookShowCmd) Run(g *BookGroup) error {
	store, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	sng, err := store.Get(c.ID)
	if err != nil {
		return err
	}
	if err := store.RecordView(sng.ID); err != nil {
		return err
	}
	fmt.Print(sng.Content)
	return nil
}

// BookSearchCmd searches stored songs.
type BookSearchCmd struct {
	Query string `arg:"" help:"Search text"`
}

func (c *BookSearchCmd) Run(g *BookGroup) error {
	store, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	songs, err := store.Search(c.Query)
	if err != nil {
		return err
	}
	printSongs(songs)
	return nil
}

// BookRemoveCmd removes a stored song.
type BookRemoveCmd struct {
	ID string `arg:"" help:"Song ID"`
}

func (c *BookRemoveCmd) Run(g *BookGroup) error {
	store, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Remove(c.ID); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", c.ID)
	return nil
}

// BookTransposeCmd transposes a stored song in place.
type BookTransposeCmd struct {
	ID        string `arg:"" help:"Song ID"`
	Semitones int    `arg:"" help:"Semitone delta (positive = up)"`
}

func (c *BookTransposeCmd) Run(g *BookGroup) error {
	store, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	sng, summary, err := store.Transpose(c.ID, c.Semitones)
	if err != nil {
		return err
	}
	fmt.Printf("transposed %s to key %s (%d chords, %d opaque skipped)\n",
		sng.ID, sng.Key, summary.Chords, summary.OpaqueSkipped)
	return nil
}

// BookFavoriteCmd marks or unmarks a favorite song.
type BookFavoriteCmd struct {
	ID     string `arg:"" help:"Song ID"`
	Remove bool   `help:"Unmark instead of mark"`
}

func (c *BookFavoriteCmd) Run(g *BookGroup) error {
	store, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	if c.Remove {
		if err := store.Unfavorite(c.ID); err != nil {
			return err
		}
		fmt.Printf("unfavorited %s\n", c.ID)
		return nil
	}
	if err := store.Favorite(c.ID); err != nil {
		return err
	}
	fmt.Printf("favorited %s\n", c.ID)
	return nil
}

// BookTagCmd attaches or detaches a tag, or lists a song's tags when
// no tag is given.
type BookTagCmd struct {
	ID     string `arg:"" help:"Song ID"`
	Tag    string `arg:"" optional:"" help:"Tag to attach (omit to list)"`
	Remove bool   `help:"Detach instead of attach"`
}

func (c *BookTagCmd) Run(g *BookGroup) error {
	store, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	if c.Tag == "" {
		tags, err := store.Tags(c.ID)
		if err != nil {
			return err
		}
		for _, tag := range tags {
			fmt.Println(tag)
		}
		return nil
	}
	if c.Remove {
		if err := store.Untag(c.ID, c.Tag); err != nil {
			return err
		}
		fmt.Printf("untagged %s: %s\n", c.ID, c.Tag)
		return nil
	}
	if err := store.Tag(c.ID, c.Tag); err != nil {
		return err
	}
	fmt.Printf("tagged %s: %s\n", c.ID, c.Tag)
	return nil
}

// BookHistoryCmd lists recently shown songs.
type BookHistoryCmd struct {
	Limit int  `default:"10" help:"Maximum entries to show"`
	Clear bool `help:"Clear the history instead of listing it"`
}

func (c *BookHistoryCmd) Run(g *BookGroup) error {
	store, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	if c.Clear {
		return store.ClearHistory()
	}
	songs, err := store.History(c.Limit)
	if err != nil {
		return err
	}
	printSongs(songs)
	return nil
}

// BookExportCmd exports the songbook to a bundle archive.
type BookExportCmd struct {
	Out  string `arg:"" help:"Output archive path (.tar.xz or .tar.gz)" type:"path"`
	Gzip bool   `help:"Use gzip compression instead of xz"`
}

func (c *BookExportCmd) Run(g *BookGroup) error {
	store, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Create(c.Out)
	if err != nil {
		return errors.NewIO("create", c.Out, err)
	}
	defer f.Close()

	compression := bundle.CompressionXZ
	if c.Gzip || strings.HasSuffix(c.Out, ".gz") {
		compression = bundle.CompressionGzip
	}
	if err := bundle.Export(store, f, compression); err != nil {
		return err
	}
	fmt.Printf("exported songbook to %s\n", c.Out)
	return nil
}

// BookImportCmd imports songs from a bundle archive.
type BookImportCmd struct {
	Path string `arg:"" help:"Bundle archive to import" type:"existingfile"`
}

func (c *BookImportCmd) Run(g *BookGroup) error {
	store, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Open(c.Path)
	if err != nil {
		return errors.NewIO("open", c.Path, err)
	}
	defer f.Close()

	added, err := bundle.Import(store, f)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d song(s)\n", added)
	return nil
}

// ConvertCmd converts a foreign format to ChordPro.
type ConvertCmd struct {
	Path string `arg:"" help:"File to convert" type:"existingfile"`
	From string `default:"auto" enum:"auto,opensong" help:"Source format"`
	Out  string `short:"o" help:"Output path (default stdout)" type:"path"`
}

func (c *ConvertCmd) Run() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return errors.NewIO("read", c.Path, err)
	}

	from := c.From
	if from == "auto" {
		switch {
		case opensong.Detect(data):
			from = "opensong"
		case chordpro.Detect(data):
			return errors.NewValidation("from", "file is already ChordPro; use 'song render' to normalize")
		default:
			return errors.NewUnsupported("format", "could not detect source format")
		}
	}

	doc, err := opensong.Parse(data)
	if err != nil {
		return err
	}
	logging.ParseEvent(c.Path, len(doc.Sections), 0, "format", from)
	return emit(c.Out, chordpro.Render(doc))
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("capo %s (sqlite driver: %s)\n", version, driverLabel())
	return nil
}

func driverLabel() string {
	return sqlite.DriverType() + "/" + sqlite.DriverName()
}

func parseFile(path string) (*song.Document, []song.Diagnostic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.NewIO("read", path, err)
	}
	doc, diags, err := chordpro.Parse(string(data), chordpro.Options{})
	if err != nil {
		return nil, nil, err
	}
	logging.ParseEvent(path, len(doc.Sections), len(diags))
	return doc, diags, nil
}

func spellingPolicy(s string) transpose.SpellingPolicy {
	switch s {
	case "sharps":
		return transpose.PolicySharps
	case "flats":
		return transpose.PolicyFlats
	}
	return transpose.PolicyAuto
}

func emit(path, content string) error {
	if path == "" {
		fmt.Print(content)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

func printSongs(songs []*songbook.Song) {
	if len(songs) == 0 {
		fmt.Println("no songs")
		return
	}
	for _, sng := range songs {
		line := sng.ID + "  " + sng.Title
		if sng.Artist != "" {
			line += " - " + sng.Artist
		}
		if sng.Key != "" {
			line += " [" + sng.Key + "]"
		}
		fmt.Println(line)
	}
}

func logLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	}
	return logging.LevelInfo
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("capo"),
		kong.Description("ChordPro parsing, transposition, and songbook management"),
		kong.UsageOnError(),
	)

	format := logging.FormatText
	if CLI.LogFormat == "json" {
		format = logging.FormatJSON
	}
	logging.InitLogger(logLevel(CLI.LogLevel), format)

	if err := ctx.Run(&CLI.Book); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
