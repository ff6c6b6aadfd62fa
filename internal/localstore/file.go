// Package localstore holds the backends persisted state slices are written
// to. Documents are plain maps; FileStorage keeps one TOML file per key.
package localstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

type FileStorage struct {
	Dir string

	mu sync.Mutex
}

func NewFileStorage(dir string) (*FileStorage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve state dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStorage{Dir: abs}, nil
}

func (s *FileStorage) Load(key string) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bytes, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}

	doc := map[string]any{}
	if err := toml.Unmarshal(bytes, &doc); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, true, nil
}

// Save replaces the document under key. Nil values are dropped since TOML
// has no null.
func (s *FileStorage) Save(key string, doc map[string]any) error {
	bytes, err := toml.Marshal(pruneNil(doc))
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(key)
	tmp, err := os.CreateTemp(s.Dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if _, err := tmp.Write(bytes); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *FileStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.Dir, unsafeKeyChars.ReplaceAllString(key, "_")+".toml")
}

func pruneNil(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if v = pruneValue(v); v != nil {
			out[k] = v
		}
	}
	return out
}

func pruneValue(v any) any {
	switch vv := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return pruneNil(vv)
	case []any:
		out := make([]any, 0, len(vv))
		for _, e := range vv {
			if e = pruneValue(e); e != nil {
				out = append(out, e)
			}
		}
		return out
	default:
		return v
	}
}
