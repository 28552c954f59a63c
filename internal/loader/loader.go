// Package loader enumerates candidate documents in a directory and turns
// supported files into text documents with metadata.
package loader

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// Metadata keys set by the loader
const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
)

// DefaultExtensions are the file types indexed when none are configured.
var DefaultExtensions = []string{".pdf", ".txt"}

// Document is extracted text with the metadata describing where it came from.
type Document struct {
	Content  string
	Metadata map[string]string
}

// FileLoader lists and loads documents from local directories.
type FileLoader struct {
	logger *slog.Logger
}

// New creates a FileLoader. A nil logger discards output.
func New(logger *slog.Logger) *FileLoader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileLoader{logger: logger}
}

// ListFiles returns the absolute paths of regular files directly inside dir
// whose extension matches exts (case-insensitive), sorted. Missing or
// unreadable directories yield an empty list.
func (l *FileLoader) ListFiles(dir string, exts []string) []string {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		l.logger.Warn("cannot resolve directory", "dir", dir, "error", err)
		return []string{}
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		l.logger.Warn("cannot read directory", "dir", abs, "error", err)
		return []string{}
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !MatchExtension(entry.Name(), exts) {
			continue
		}
		path := filepath.Join(abs, entry.Name())

		// Follow symlinks so linked files count but linked dirs do not
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}

	sort.Strings(files)
	return files
}

// MatchExtension reports whether name ends with one of exts, ignoring case.
func MatchExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if ext == e {
			return true
		}
	}
	return false
}

// Load extracts the documents in path. Text files produce one document and
// PDFs one document per page. Unsupported or unreadable files are logged
// and produce no documents.
func (l *FileLoader) Load(path string) []Document {
	var (
		docs []Document
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		docs, err = loadText(path)
	case ".pdf":
		docs, err = loadPDF(path)
	default:
		l.logger.Warn("unsupported file format", "path", path)
		return []Document{}
	}

	if err != nil {
		l.logger.Warn("failed to load document", "path", path, "error", err)
		return []Document{}
	}
	return docs
}

func loadText(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, string(utf8.RuneError))
	}
	return []Document{{
		Content:  content,
		Metadata: map[string]string{MetaSource: path},
	}}, nil
}
