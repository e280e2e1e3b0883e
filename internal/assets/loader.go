// Package assets loads the font files the shell needs before it can draw.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"storefront/internal/sequencer"
)

// ErrUnknownFormat is returned for files that are not TrueType or OpenType.
var ErrUnknownFormat = errors.New("not a TrueType or OpenType font")

// Font formats recognised by sniffFormat.
const (
	FormatTrueType   = "truetype"
	FormatOpenType   = "opentype"
	FormatCollection = "collection"
)

// Font is a loaded font registered under a family name.
type Font struct {
	Family string `json:"family" yaml:"family"`
	File   string `json:"file" yaml:"file"`
	Format string `json:"format" yaml:"format"`
	Size   int    `json:"size" yaml:"size"`
}

type cachedFile struct {
	format string
	size   int
}

// Loader reads fonts from fsys and registers them by family. Validated files
// are kept in an LRU so aliases and retries skip the read.
type Loader struct {
	fsys  fs.FS
	cache *lru.Cache[string, cachedFile]

	mu       sync.RWMutex
	families map[string]Font
}

// NewLoader returns a Loader reading from fsys with room for cacheSize files.
func NewLoader(fsys fs.FS, cacheSize int) (*Loader, error) {
	if cacheSize <= 0 {
		cacheSize = 32
	}
	cache, err := lru.New[string, cachedFile](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating asset cache: %w", err)
	}
	return &Loader{
		fsys:     fsys,
		cache:    cache,
		families: make(map[string]Font),
	}, nil
}

// Load reads and validates a's file and registers it under a.Name.
func (l *Loader) Load(ctx context.Context, a sequencer.Asset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file := path.Clean(a.File)
	cf, ok := l.cache.Get(file)
	if !ok {
		data, err := fs.ReadFile(l.fsys, file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}
		format, err := sniffFormat(data)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		cf = cachedFile{format: format, size: len(data)}
		l.cache.Add(file, cf)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	l.families[a.Name] = Font{Family: a.Name, File: file, Format: cf.format, Size: cf.size}
	l.mu.Unlock()
	return nil
}

// Font returns the font registered for family.
func (l *Loader) Font(family string) (Font, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.families[family]
	return f, ok
}

// Families lists the registered family names, sorted.
func (l *Loader) Families() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.families))
	for name := range l.families {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Invalidate drops file from the cache so the next Load reads it again.
func (l *Loader) Invalidate(file string) {
	l.cache.Remove(path.Clean(file))
}

// Cached reports how many files are cached.
func (l *Loader) Cached() int {
	return l.cache.Len()
}

var (
	magicTrueType      = []byte{0x00, 0x01, 0x00, 0x00}
	magicTrueTypeApple = []byte("true")
	magicOpenType      = []byte("OTTO")
	magicCollection    = []byte("ttcf")
)

func sniffFormat(data []byte) (string, error) {
	if len(data) < 4 {
		return "", ErrUnknownFormat
	}
	head := data[:4]
	switch {
	case bytes.Equal(head, magicTrueType), bytes.Equal(head, magicTrueTypeApple):
		return FormatTrueType, nil
	case bytes.Equal(head, magicOpenType):
		return FormatOpenType, nil
	case bytes.Equal(head, magicCollection):
		return FormatCollection, nil
	}
	return "", ErrUnknownFormat
}
