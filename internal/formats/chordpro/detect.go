package chordpro

import "bytes"

// Detect reports whether the data looks like ChordPro text: at least
// one {directive} or [chord] marker on a non-comment line.
func Detect(data []byte) bool {
	for _, line := range bytes.Split(data, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 || trimmed[0] == '#' {
			continue
		}
		if bytes.IndexByte(trimmed, '{') >= 0 || bytes.IndexByte(trimmed, '[') >= 0 {
			return true
		}
	}
	return false
}
