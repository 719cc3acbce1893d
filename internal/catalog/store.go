package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("recipe not found")

// Store is durable recipe storage. Save is an atomic read-modify-write.
type Store interface {
	FindByKey(ctx context.Context, key string) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, dish, recipeText string) (Entry, error)
}

// MemoryStore keeps the catalog in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

func NewMemoryStore(seed ...Entry) *MemoryStore {
	entries := append([]Entry(nil), seed...)
	SortByDish(entries)
	return &MemoryStore{entries: entries, now: time.Now}
}

func (m *MemoryStore) FindByKey(ctx context.Context, key string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return find(m.entries, key)
}

func (m *MemoryStore) List(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...), nil
}

func (m *MemoryStore) Save(ctx context.Context, dish, recipeText string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var saved Entry
	m.entries, saved = Save(m.entries, dish, recipeText, m.now().UTC())
	return saved, nil
}

// FileStore persists the catalog as a YAML document. Writes go to a temp
// file in the same directory and are renamed over the original.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

type fileDoc struct {
	Recipes []Entry `yaml:"recipes"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (f *FileStore) FindByKey(ctx context.Context, key string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.read()
	if err != nil {
		return Entry{}, err
	}
	return find(entries, key)
}

func (f *FileStore) List(ctx context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

func (f *FileStore) Save(ctx context.Context, dish, recipeText string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.read()
	if err != nil {
		return Entry{}, err
	}
	entries, saved := Save(entries, dish, recipeText, f.now().UTC())
	if err := f.write(entries); err != nil {
		return Entry{}, err
	}
	return saved, nil
}

func (f *FileStore) read() ([]Entry, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var doc fileDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", f.path, err)
	}
	for i := range doc.Recipes {
		if doc.Recipes[i].DishKey == "" {
			doc.Recipes[i].DishKey = NormalizeDishKey(doc.Recipes[i].Dish)
		}
	}
	return doc.Recipes, nil
}

func (f *FileStore) write(entries []Entry) error {
	b, err := yaml.Marshal(fileDoc{Recipes: entries})
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".recipes-*.yaml")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func find(entries []Entry, key string) (Entry, error) {
	key = NormalizeDishKey(key)
	for _, e := range entries {
		if entryKey(e) == key {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}
