package songbook

import (
	"database/sql"
	"strings"
	"time"

	"github.com/openchord/capo/core/errors"
	"github.com/openchord/capo/internal/logging"
)

const songColumns = "id, title, artist, key, first_line, content, content_hash, created_at, updated_at"

// Favorite marks a song as a favorite. Favoriting an already-favorite
// song is a no-op.
func (s *Store) Favorite(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO favorites (song_id, created_at) VALUES (?, ?)",
		id, time.Now().UTC().Unix(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to favorite song")
	}
	logging.StoreEvent("favorite", id)
	return nil
}

// Unfavorite removes a song's favorite mark.
func (s *Store) Unfavorite(id string) error {
	res, err := s.db.Exec("DELETE FROM favorites WHERE song_id = ?", id)
	if err != nil {
		return errors.Wrap(err, "failed to unfavorite song")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFound("favorite", id)
	}
	logging.StoreEvent("unfavorite", id)
	return nil
}

// IsFavorite reports whether a song is marked as a favorite.
func (s *Store) IsFavorite(id string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM favorites WHERE song_id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to check favorite")
	}
	return true, nil
}

// Favorites returns all favorite songs ordered by title, without
// content.
func (s *Store) Favorites() ([]*Song, error) {
	rows, err := s.db.Query(
		"SELECT " + songColumns + " FROM songs " +
			"WHERE id IN (SELECT song_id FROM favorites) ORDER BY title, id",
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list favorites")
	}
	return collectSongs(rows)
}

// RecordView appends a song view to the history.
func (s *Store) RecordView(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"INSERT INTO history (song_id, viewed_at) VALUES (?, ?)",
		id, time.Now().UTC().Unix(),
	)
	return errors.Wrap(err, "failed to record view")
}

// History returns the most recently viewed songs, newest first, each
// song at most once and without content. A non-positive limit returns
// the full history.
func (s *Store) History(limit int) ([]*Song, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		"SELECT "+songColumns+" FROM songs JOIN "+
			"(SELECT song_id, MAX(id) AS latest FROM history GROUP BY song_id) h "+
			"ON songs.id = h.song_id ORDER BY h.latest DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list history")
	}
	return collectSongs(rows)
}

// ClearHistory drops all recorded views.
func (s *Store) ClearHistory() error {
	_, err := s.db.Exec("DELETE FROM history")
	return errors.Wrap(err, "failed to clear history")
}

// normalizeTag canonicalizes a tag for storage: trimmed and lowercase.
func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// Tag attaches a tag to a song. Tags are case-insensitive; tagging with
// an already-attached tag is a no-op.
func (s *Store) Tag(id, tag string) error {
	tag = normalizeTag(tag)
	if tag == "" {
		return errors.Wrap(errors.ErrInvalidInput, "empty tag")
	}
	if _, err := s.Get(id); err != nil {
		return err
	}
	_, err := s.db.Exec("INSERT OR IGNORE INTO tags (song_id, tag) VALUES (?, ?)", id, tag)
	if err != nil {
		return errors.Wrap(err, "failed to tag song")
	}
	logging.StoreEvent("tag", id, "tag", tag)
	return nil
}

// Untag detaches a tag from a song.
func (s *Store) Untag(id, tag string) error {
	res, err := s.db.Exec("DELETE FROM tags WHERE song_id = ? AND tag = ?", id, normalizeTag(tag))
	if err != nil {
		return errors.Wrap(err, "failed to untag song")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFound("tag", tag)
	}
	return nil
}

// Tags returns a song's tags in sorted order.
func (s *Store) Tags(id string) ([]string, error) {
	rows, err := s.db.Query("SELECT tag FROM tags WHERE song_id = ? ORDER BY tag", id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tags")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, errors.Wrap(err, "failed to scan tag")
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

// SongsByTag returns all songs carrying the given tag, ordered by
// title and without content.
func (s *Store) SongsByTag(tag string) ([]*Song, error) {
	rows, err := s.db.Query(
		"SELECT "+songColumns+" FROM songs "+
			"WHERE id IN (SELECT song_id FROM tags WHERE tag = ?) ORDER BY title, id",
		normalizeTag(tag),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list songs by tag")
	}
	return collectSongs(rows)
}

// collectSongs drains a song query, stripping content.
func collectSongs(rows *sql.Rows) ([]*Song, error) {
	defer rows.Close()

	var out []*Song
	for rows.Next() {
		sng, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		sng.Content = ""
		out = append(out, sng)
	}
	return out, rows.Err()
}
