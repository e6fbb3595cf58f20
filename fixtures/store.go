// Package fixtures loads the shared test data files that stub services
// return, from the mobile-test-data layout:
//
//	<root>/mobile-test-data/NGC/<WEB|API>/<subDir>/<name>.<json|html|atom>
package fixtures

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
)

// ErrNotFound matches every *NotFoundError.
var ErrNotFound = errors.New("fixture not found")

// FileType is the extension of a fixture file.
type FileType string

const (
	JSON FileType = "json"
	HTML FileType = "html"
	Atom FileType = "atom"
)

// DirectoryType separates web content from API responses.
type DirectoryType string

const (
	Web DirectoryType = "WEB"
	API DirectoryType = "API"
)

const testDataDir = "mobile-test-data/NGC"

// NotFoundError reports a fixture missing from every root.
type NotFoundError struct {
	Name      string
	SubDir    string
	Directory DirectoryType
	Type      FileType
	Roots     []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not locate %s.%s in %s/%s/%s under %s",
		e.Name, e.Type, testDataDir, e.Directory, e.SubDir, strings.Join(e.Roots, ", "))
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Store finds fixtures under one or more roots, searched in order.
type Store struct {
	fs    afero.Fs
	roots []string
}

// NewStore creates a store over fs. With no roots the working directory is searched.
func NewStore(fs afero.Fs, roots ...string) *Store {
	if len(roots) == 0 {
		roots = []string{"."}
	}
	return &Store{fs: fs, roots: roots}
}

// NewOsStore creates a store over the real filesystem.
func NewOsStore(roots ...string) *Store {
	return NewStore(afero.NewOsFs(), roots...)
}

// Option adjusts a single lookup.
type Option func(*lookup)

type lookup struct {
	directory     DirectoryType
	fileType      FileType
	substitutions map[string]string
}

// Directory selects WEB or API fixtures. The default is API.
func Directory(d DirectoryType) Option {
	return func(l *lookup) { l.directory = d }
}

// Type selects the file extension. The default is JSON.
func Type(t FileType) Option {
	return func(l *lookup) { l.fileType = t }
}

// Substitutions replaces each key with its value in the loaded content.
func Substitutions(replacements map[string]string) Option {
	return func(l *lookup) { l.substitutions = replacements }
}

func newLookup(opts []Option) lookup {
	l := lookup{directory: API, fileType: JSON}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

func (l lookup) relPath(name, subDir string) string {
	return filepath.Join(testDataDir, string(l.directory), subDir, name+"."+string(l.fileType))
}

// Path returns the location of a fixture in the first root that holds it.
func (s *Store) Path(name, subDir string, opts ...Option) (string, error) {
	l := newLookup(opts)
	return s.find(name, subDir, l)
}

func (s *Store) find(name, subDir string, l lookup) (string, error) {
	rel := l.relPath(name, subDir)
	for _, root := range s.roots {
		path := filepath.Join(root, rel)
		if ok, err := afero.Exists(s.fs, path); err != nil {
			return "", fmt.Errorf("checking %s: %w", path, err)
		} else if ok {
			return path, nil
		}
	}
	return "", &NotFoundError{
		Name:      name,
		SubDir:    subDir,
		Directory: l.directory,
		Type:      l.fileType,
		Roots:     s.roots,
	}
}

// Load reads a fixture and applies any substitutions. Substitutions are
// applied in sorted key order, so overlapping keys give the same result on
// every run.
func (s *Store) Load(name, subDir string, opts ...Option) (string, error) {
	l := newLookup(opts)
	path, err := s.find(name, subDir, l)
	if err != nil {
		return "", err
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return "", fmt.Errorf("reading fixture %s: %w", path, err)
	}
	return substitute(string(data), l.substitutions), nil
}

func substitute(content string, replacements map[string]string) string {
	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		content = strings.ReplaceAll(content, k, replacements[k])
	}
	return content
}

// LoadJSON loads a JSON fixture, after substitutions, into out.
func (s *Store) LoadJSON(name, subDir string, out any, opts ...Option) error {
	content, err := s.Load(name, subDir, append(opts, Type(JSON))...)
	if err != nil {
		return err
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(content, out); err != nil {
		return fmt.Errorf("decoding fixture %s: %w", name, err)
	}
	return nil
}

// Fataler is the part of testing.TB MustLoad needs.
type Fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// MustLoad loads a fixture or stops the test. A missing fixture is a broken
// test, not a condition worth retrying.
func (s *Store) MustLoad(t Fataler, name, subDir string, opts ...Option) string {
	t.Helper()
	content, err := s.Load(name, subDir, opts...)
	if err != nil {
		t.Fatalf("fixtures: %v", err)
	}
	return content
}
