package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the feed in a pretty-printed JSON array file.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewFileStore returns a store backed by path. The file and its directory
// are created on the first Add.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// read never fails: a missing file is an empty feed, a broken one is logged
// and treated as empty.
func (s *FileStore) read() []Article {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("failed to read news file", "path", s.path, "err", err)
		}
		return nil
	}
	var articles []Article
	if err := json.Unmarshal(b, &articles); err != nil {
		s.logger.Error("news file is not a JSON array", "path", s.path, "err", err)
		return nil
	}
	return articles
}

func (s *FileStore) write(articles []Article) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("news: file: mkdir: %w", err)
	}
	b, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return fmt.Errorf("news: file: marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".news-*.json")
	if err != nil {
		return fmt.Errorf("news: file: temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("news: file: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("news: file: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("news: file: rename: %w", err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context) ([]Article, error) {
	s.mu.Lock()
	articles := s.read()
	s.mu.Unlock()
	Sort(articles)
	return articles, nil
}

func (s *FileStore) Get(_ context.Context, id string) (Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.read() {
		if a.ID == id {
			return a, nil
		}
	}
	return Article{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// Add prepends a and keeps the newest MaxArticles entries.
func (s *FileStore) Add(_ context.Context, a Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	articles := append([]Article{a}, s.read()...)
	if len(articles) > MaxArticles {
		articles = articles[:MaxArticles]
	}
	return s.write(articles)
}
