// Package bundle packs a songbook into a portable tar archive (one
// ChordPro file per song plus a manifest) and unpacks such archives
// back into a songbook.
package bundle

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	stderrors "errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/openchord/capo/core/errors"
	"github.com/openchord/capo/internal/logging"
	"github.com/openchord/capo/internal/songbook"
)

// ManifestVersion is the current bundle manifest schema version.
const ManifestVersion = "1.0.0"

// CompressionType specifies the compression algorithm for bundles.
type CompressionType string

const (
	// CompressionXZ uses XZ/LZMA2 compression (default, best ratio).
	CompressionXZ CompressionType = "xz"
	// CompressionGzip uses gzip compression (stdlib, faster).
	CompressionGzip CompressionType = "gzip"
)

// Entry describes one song in the bundle manifest.
type Entry struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	File        string `json:"file"`
	ContentHash string `json:"content_hash"`
}

// Manifest is the bundle's table of contents.
type Manifest struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Songs     []Entry   `json:"songs"`
}

// Export writes every song in the store to w as a compressed tar
// archive: manifest.json plus songs/<id>.cho files.
func Export(store *songbook.Store, w io.Writer, compression CompressionType) error {
	var cw io.WriteCloser
	var err error
	switch compression {
	case CompressionGzip:
		cw = gzip.NewWriter(w)
	case CompressionXZ, "":
		cw, err = xz.NewWriter(w)
		if err != nil {
			return errors.Wrap(err, "failed to create xz writer")
		}
	default:
		return errors.NewUnsupported("compression", string(compression))
	}

	tw := tar.NewWriter(cw)

	songs, err := store.List()
	if err != nil {
		return err
	}

	manifest := &Manifest{
		Version:   ManifestVersion,
		CreatedAt: time.Now().UTC(),
	}

	for _, sng := range songs {
		full, err := store.Get(sng.ID)
		if err != nil {
			return err
		}
		file := path.Join("songs", full.ID+".cho")
		if err := writeTarFile(tw, file, []byte(full.Content)); err != nil {
			return err
		}
		manifest.Songs = append(manifest.Songs, Entry{
			ID:          full.ID,
			Title:       full.Title,
			File:        file,
			ContentHash: full.ContentHash,
		})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal manifest")
	}
	if err := writeTarFile(tw, "manifest.json", data); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return errors.Wrap(err, "failed to finalize archive")
	}
	if err := cw.Close(); err != nil {
		return errors.Wrap(err, "failed to finalize compression")
	}

	logging.Info("bundle_export", "songs", len(manifest.Songs), "compression", string(compression))
	return nil
}

func writeTarFile(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: time.Now().UTC(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return errors.Wrap(err, "failed to write tar header")
	}
	if _, err := tw.Write(data); err != nil {
		return errors.Wrap(err, "failed to write tar data")
	}
	return nil
}

// magic bytes for compression detection.
var (
	xzMagic   = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
	gzipMagic = []byte{0x1F, 0x8B}
)

// detectCompression sniffs the archive's compression from its magic
// bytes without consuming the reader.
func detectCompression(br *bufio.Reader) (CompressionType, error) {
	head, err := br.Peek(len(xzMagic))
	if err != nil {
		return "", errors.NewMalformedInput("bundle too short", 0)
	}
	switch {
	case bytes.HasPrefix(head, xzMagic):
		return CompressionXZ, nil
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip, nil
	}
	return "", errors.NewMalformedInput("unrecognized bundle compression", 0)
}

// Import reads a bundle archive and adds every .cho file it contains to
// the store. Songs whose content is already stored are skipped. Returns
// the number of songs added.
func Import(store *songbook.Store, r io.Reader) (int, error) {
	br := bufio.NewReader(r)
	compression, err := detectCompression(br)
	if err != nil {
		return 0, err
	}

	var cr io.Reader
	switch compression {
	case CompressionGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return 0, errors.Wrap(err, "failed to open gzip stream")
		}
		defer gz.Close()
		cr = gz
	case CompressionXZ:
		cr, err = xz.NewReader(br)
		if err != nil {
			return 0, errors.Wrap(err, "failed to open xz stream")
		}
	}

	tr := tar.NewReader(cr)
	added := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return added, errors.Wrap(err, "failed to read archive")
		}
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(hdr.Name, ".cho") {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return added, errors.Wrap(err, "failed to read archive entry")
		}

		if _, err := store.Add(string(data)); err != nil {
			if stderrors.Is(err, errors.ErrAlreadyExists) {
				logging.Warn("bundle_import_skip", "file", hdr.Name, "reason", "duplicate")
				continue
			}
			return added, errors.Wrapf(err, "failed to import %s", hdr.Name)
		}
		added++
	}

	logging.Info("bundle_import", "songs", added)
	return added, nil
}
