package fsops

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

var unsafeReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "",
	"?", "",
	"\"", "'",
	"<", "",
	">", "",
	"|", "-",
)

// SanitizeName makes s safe as a single path component. Empty results
// become "Unknown".
func SanitizeName(s string) string {
	s = norm.NFC.String(s)
	s = unsafeReplacer.Replace(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	// Leading or trailing dots and spaces are hidden files or invalid on Windows
	s = strings.Trim(s, " .")
	if s == "" {
		return "Unknown"
	}
	return s
}

// Layout describes a file's place in the canonical library tree
type Layout struct {
	AlbumArtist string
	Album       string
	TrackNo     int
	Title       string
	Ext         string // with leading dot
}

// Dir returns <root>/<AlbumArtist>/<Album>
func (l Layout) Dir(root string) string {
	return filepath.Join(root, SanitizeName(l.AlbumArtist), SanitizeName(l.Album))
}

// Filename returns "NN - Title.ext"
func (l Layout) Filename() string {
	trackNo := l.TrackNo
	if trackNo <= 0 {
		trackNo = 1
	}
	return SanitizeName(fmt.Sprintf("%02d - %s", trackNo, l.Title)) + strings.ToLower(l.Ext)
}
