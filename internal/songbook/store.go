// Package songbook provides SQLite-backed storage for ChordPro songs
// and playlists. It is a thin persistence layer over the document
// model: songs are stored as raw ChordPro text plus metadata extracted
// at save time, and every content-changing operation goes through the
// parser so stored metadata never drifts from the content.
package songbook

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/openchord/capo/core/errors"
	"github.com/openchord/capo/core/sqlite"
	"github.com/openchord/capo/core/transpose"
	"github.com/openchord/capo/internal/formats/chordpro"
	"github.com/openchord/capo/internal/logging"
)

// Song is a stored song: raw ChordPro content plus metadata extracted
// from it at save time.
type Song struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist,omitempty"`
	Key         string    `json:"key,omitempty"`
	FirstLine   string    `json:"first_line,omitempty"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Playlist is an ordered collection of stored songs.
type Playlist struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SongIDs   []string  `json:"song_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS songs (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	artist TEXT,
	key TEXT,
	first_line TEXT,
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_songs_title ON songs(title);
CREATE INDEX IF NOT EXISTS idx_songs_hash ON songs(content_hash);
CREATE TABLE IF NOT EXISTS playlists (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS playlist_songs (
	playlist_id TEXT NOT NULL,
	song_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (playlist_id, position),
	FOREIGN KEY (playlist_id) REFERENCES playlists(id),
	FOREIGN KEY (song_id) REFERENCES songs(id)
);
CREATE TABLE IF NOT EXISTS favorites (
	song_id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (song_id) REFERENCES songs(id)
);
CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	song_id TEXT NOT NULL,
	viewed_at INTEGER NOT NULL,
	FOREIGN KEY (song_id) REFERENCES songs(id)
);
CREATE INDEX IF NOT EXISTS idx_history_viewed ON history(viewed_at);
CREATE TABLE IF NOT EXISTS tags (
	song_id TEXT NOT NULL,
	tag TEXT NOT NULL,
	PRIMARY KEY (song_id, tag),
	FOREIGN KEY (song_id) REFERENCES songs(id)
);
CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);
`

// Store is a songbook backed by a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a songbook database at the given
// path.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create songbook schema")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// contentHash returns the BLAKE3 hash of song content, hex-encoded.
func contentHash(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Add parses the given ChordPro content, extracts its metadata, and
// stores it as a new song. Content identical to an already-stored song
// is rejected with ErrAlreadyExists.
func (s *Store) Add(content string) (*Song, error) {
	doc, diags, err := chordpro.Parse(content, chordpro.Options{})
	if err != nil {
		return nil, err
	}

	hash := contentHash(content)
	var existing string
	err = s.db.QueryRow("SELECT id FROM songs WHERE content_hash = ?", hash).Scan(&existing)
	if err == nil {
		return nil, errors.Wrapf(errors.ErrAlreadyExists, "identical song already stored as %s", existing)
	}
	if err != sql.ErrNoRows {
		return nil, errors.Wrap(err, "failed to check for duplicate song")
	}

	now := time.Now().UTC()
	sng := &Song{
		ID:          uuid.NewString(),
		Title:       doc.Title(),
		Artist:      doc.Artist(),
		Key:         doc.Key(),
		FirstLine:   doc.FirstLine(),
		Content:     content,
		ContentHash: hash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sng.Title == "" {
		sng.Title = "Untitled"
	}

	_, err = s.db.Exec(
		"INSERT INTO songs (id, title, artist, key, first_line, content, content_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		sng.ID, sng.Title, sng.Artist, sng.Key, sng.FirstLine, sng.Content, sng.ContentHash,
		sng.CreatedAt.Unix(), sng.UpdatedAt.Unix(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert song")
	}

	logging.StoreEvent("add", sng.ID, "title", sng.Title, "diagnostics", len(diags))
	return sng, nil
}

// Get retrieves a song by ID.
func (s *Store) Get(id string) (*Song, error) {
	row := s.db.QueryRow(
		"SELECT id, title, artist, key, first_line, content, content_hash, created_at, updated_at FROM songs WHERE id = ?",
		id,
	)
	return scanSong(row)
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (*Song, error) {
	var sng Song
	var created, updated int64
	err := row.Scan(&sng.ID, &sng.Title, &sng.Artist, &sng.Key, &sng.FirstLine,
		&sng.Content, &sng.ContentHash, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("song", "")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan song")
	}
	sng.CreatedAt = time.Unix(created, 0).UTC()
	sng.UpdatedAt = time.Unix(updated, 0).UTC()
	return &sng, nil
}

// List returns all songs ordered by title, without content.
func (s *Store) List() ([]*Song, error) {
	rows, err := s.db.Query(
		"SELECT id, title, artist, key, first_line, content, content_hash, created_at, updated_at FROM songs ORDER BY title, id",
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list songs")
	}
	return collectSongs(rows)
}

// Search returns songs whose title or first lyric line contains the
// query, case-insensitively.
func (s *Store) Search(query string) ([]*Song, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.Query(
		"SELECT id, title, artist, key, first_line, content, content_hash, created_at, updated_at FROM songs "+
			"WHERE lower(title) LIKE ? OR lower(first_line) LIKE ? ORDER BY title, id",
		pattern, pattern,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search songs")
	}
	return collectSongs(rows)
}

// Update replaces a song's content, re-extracting metadata.
func (s *Store) Update(id, content string) (*Song, error) {
	doc, _, err := chordpro.Parse(content, chordpro.Options{})
	if err != nil {
		return nil, err
	}

	title := doc.Title()
	if title == "" {
		title = "Untitled"
	}
	now := time.Now().UTC()

	res, err := s.db.Exec(
		"UPDATE songs SET title = ?, artist = ?, key = ?, first_line = ?, content = ?, content_hash = ?, updated_at = ? WHERE id = ?",
		title, doc.Artist(), doc.Key(), doc.FirstLine(), content, contentHash(content), now.Unix(), id,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update song")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errors.NewNotFound("song", id)
	}

	logging.StoreEvent("update", id, "title", title)
	return s.Get(id)
}

// Remove deletes a song along with its playlist memberships, favorite
// mark, view history, and tags.
func (s *Store) Remove(id string) error {
	for _, table := range []string{"playlist_songs", "favorites", "history", "tags"} {
		if _, err := s.db.Exec("DELETE FROM "+table+" WHERE song_id = ?", id); err != nil {
			return errors.Wrapf(err, "failed to remove %s rows", table)
		}
	}
	res, err := s.db.Exec("DELETE FROM songs WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "failed to remove song")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFound("song", id)
	}
	logging.StoreEvent("remove", id)
	return nil
}

// Transpose rewrites a stored song's content transposed by the given
// semitone delta with automatic spelling, and returns the updated song
// together with the transposition summary.
func (s *Store) Transpose(id string, semitones int) (*Song, transpose.Summary, error) {
	sng, err := s.Get(id)
	if err != nil {
		return nil, transpose.Summary{}, err
	}

	doc, _, err := chordpro.Parse(sng.Content, chordpro.Options{})
	if err != nil {
		return nil, transpose.Summary{}, err
	}

	transposed, summary := transpose.Document(doc, semitones, transpose.PolicyAuto)
	logging.TransposeEvent(semitones, summary.Chords, summary.OpaqueSkipped, "song_id", id)

	updated, err := s.Update(id, chordpro.Render(transposed))
	return updated, summary, err
}

// CreatePlaylist creates an empty playlist.
func (s *Store) CreatePlaylist(name string) (*Playlist, error) {
	pl := &Playlist{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec("INSERT INTO playlists (id, name, created_at) VALUES (?, ?, ?)",
		pl.ID, pl.Name, pl.CreatedAt.Unix())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create playlist")
	}
	return pl, nil
}

// AddToPlaylist appends a song to the end of a playlist.
func (s *Store) AddToPlaylist(playlistID, songID string) error {
	if _, err := s.Get(songID); err != nil {
		return err
	}

	var next int
	err := s.db.QueryRow(
		"SELECT COALESCE(MAX(position), -1) + 1 FROM playlist_songs WHERE playlist_id = ?",
		playlistID,
	).Scan(&next)
	if err != nil {
		return errors.Wrap(err, "failed to find playlist position")
	}

	_, err = s.db.Exec(
		"INSERT INTO playlist_songs (playlist_id, song_id, position) VALUES (?, ?, ?)",
		playlistID, songID, next,
	)
	return errors.Wrap(err, "failed to add song to playlist")
}

// GetPlaylist retrieves a playlist and its song IDs in order.
func (s *Store) GetPlaylist(id string) (*Playlist, error) {
	var pl Playlist
	var created int64
	err := s.db.QueryRow("SELECT id, name, created_at FROM playlists WHERE id = ?", id).
		Scan(&pl.ID, &pl.Name, &created)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("playlist", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist")
	}
	pl.CreatedAt = time.Unix(created, 0).UTC()

	rows, err := s.db.Query(
		"SELECT song_id FROM playlist_songs WHERE playlist_id = ? ORDER BY position",
		id,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list playlist songs")
	}
	defer rows.Close()
	for rows.Next() {
		var songID string
		if err := rows.Scan(&songID); err != nil {
			return nil, errors.Wrap(err, "failed to scan playlist song")
		}
		pl.SongIDs = append(pl.SongIDs, songID)
	}
	return &pl, rows.Err()
}

// Count returns the number of stored songs.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM songs").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count songs")
	}
	return n, nil
}

// String implements fmt.Stringer for debugging.
func (s *Store) String() string {
	n, err := s.Count()
	if err != nil {
		return "songbook(unavailable)"
	}
	return fmt.Sprintf("songbook(%d songs)", n)
}
