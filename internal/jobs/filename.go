package jobs

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AllowedExtensions lists the upload types accepted, lowercase and without dot
var AllowedExtensions = map[string]struct{}{
	"mp3": {},
	"mp4": {},
	"wav": {},
	"m4a": {},
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// AllowedFile reports whether the filename has an accepted extension, case-insensitively
func AllowedFile(filename string) bool {
	ext := fileExtension(filename)
	if ext == "" {
		return false
	}
	_, ok := AllowedExtensions[ext]
	return ok
}

// fileExtension is the lowercased text after the last dot, or "" without a dot
func fileExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

// SecureFilename reduces a client supplied name to a flat ASCII filename that
// is safe to join onto a directory. It may return an empty string.
func SecureFilename(filename string) string {
	filename = norm.NFKD.String(filename)

	ascii := make([]byte, 0, len(filename))
	for i := 0; i < len(filename); i++ {
		if filename[i] < 0x80 {
			ascii = append(ascii, filename[i])
		}
	}
	filename = string(ascii)

	filename = strings.NewReplacer("/", " ", "\\", " ").Replace(filename)
	filename = strings.Join(strings.Fields(filename), "_")
	filename = unsafeFilenameChars.ReplaceAllString(filename, "")
	return strings.Trim(filename, "._")
}

// isPlainFilename reports whether name can be used verbatim inside a directory
func isPlainFilename(name string) bool {
	return name != "" && name == SecureFilename(name) && name == filepath.Base(name)
}
