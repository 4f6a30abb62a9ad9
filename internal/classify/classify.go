// Package classify derives the destination bucket for a file name.
package classify

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NoExtension is the bucket for names without a usable extension.
const NoExtension = "no_extension"

// Bucket returns the lowercase text after the last dot of the base name, or
// NoExtension when there is none. Dotfiles such as ".bashrc" and names ending
// in a dot have no extension.
func Bucket(name string) string {
	base := filepath.Base(name)
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 || idx == len(base)-1 {
		return NoExtension
	}
	return cases.Lower(language.Und).String(base[idx+1:])
}

// HasExtension reports whether name sorts into a real extension bucket.
func HasExtension(name string) bool {
	return Bucket(name) != NoExtension
}
