package uploads

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"financegpt/internal/pkg/pdfextract"
)

var ErrUnsupportedType = errors.New("unsupported document type")

// Store reads documents the upload tier saved under one directory. Only the
// base name of a requested file is used, so callers cannot escape the
// directory.
type Store struct {
	dir      string
	maxChars int
}

func NewStore(dir string, maxChars int) *Store {
	return &Store{dir: dir, maxChars: maxChars}
}

// Excerpt returns the leading text of the named document. PDFs go through
// text extraction and plain text formats are read as is.
func (s *Store) Excerpt(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, name)
	}
	path := filepath.Join(s.dir, base)

	switch strings.ToLower(filepath.Ext(base)) {
	case ".pdf":
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return pdfextract.ExtractText(f, s.maxChars)
	case ".txt", ".csv", ".md", ".json":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return pdfextract.Truncate(strings.TrimSpace(string(b)), s.maxChars), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(base))
	}
}
