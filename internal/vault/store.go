// Package vault stores tasks as markdown files in stage folders. Moving a
// file between folders is the commit point of every stage change.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/frontmatter"
)

const placeholder = ".gitkeep"

// Store is a vault rooted at a directory.
type Store struct {
	root string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for created_at stamps and filenames.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open prepares the vault at root, creating every stage folder.
func Open(root string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create vault root: %w", err)
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	resolvedRoot, err = filepath.Abs(resolvedRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}

	s := &Store{root: resolvedRoot, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	for _, f := range domain.Folders {
		if err := os.MkdirAll(s.Dir(f), 0o755); err != nil {
			return nil, fmt.Errorf("create folder %s: %w", f, err)
		}
	}
	return s, nil
}

// Root returns the absolute vault root.
func (s *Store) Root() string { return s.root }

// Now returns the store's current time.
func (s *Store) Now() time.Time { return s.now() }

// Dir returns the absolute path of a stage folder.
func (s *Store) Dir(f domain.Folder) string {
	return filepath.Join(s.root, filepath.FromSlash(string(f)))
}

// Path returns the absolute path of a task file.
func (s *Store) Path(t domain.Task) string {
	return filepath.Join(s.Dir(t.Folder), t.Name)
}

// Rel returns path relative to the vault root with forward slashes.
func (s *Store) Rel(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// List returns the markdown filenames in folder in lexicographic order. A
// missing folder is empty.
func (s *Store) List(f domain.Folder) ([]string, error) {
	entries, err := os.ReadDir(s.Dir(f))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", f, err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == placeholder || !strings.HasSuffix(name, ".md") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Load reads one task.
func (s *Store) Load(f domain.Folder, name string) (domain.Task, error) {
	if name != filepath.Base(name) {
		return domain.Task{}, &domain.PathOutsideVaultError{Path: name}
	}
	data, err := os.ReadFile(filepath.Join(s.Dir(f), name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Task{}, &domain.TaskNotFoundError{Name: name, Folder: f}
		}
		return domain.Task{}, fmt.Errorf("read %s/%s: %w", f, name, err)
	}
	fields, body := frontmatter.Parse(string(data))
	return domain.Task{Name: name, Folder: f, Fields: fields, Body: body}, nil
}

// LoadAll reads every task in folder. Files that fail to load are reported
// in the joined error while the rest are still returned.
func (s *Store) LoadAll(f domain.Folder) ([]domain.Task, error) {
	names, err := s.List(f)
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(names))
	var errs []error
	for _, name := range names {
		t, err := s.Load(f, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, errors.Join(errs...)
}

// Save rewrites the task in place.
func (s *Store) Save(t domain.Task) error {
	if err := writeAtomic(s.Path(t), frontmatter.Render(t.Fields, t.Body)); err != nil {
		return fmt.Errorf("save %s/%s: %w", t.Folder, t.Name, err)
	}
	return nil
}

// Move writes the task into folder to and then removes the source, so the
// file is never absent from the vault. The moved task is returned.
func (s *Store) Move(t domain.Task, to domain.Folder) (domain.Task, error) {
	if t.Folder == to {
		return t, s.Save(t)
	}
	moved := t
	moved.Folder = to
	if err := os.MkdirAll(s.Dir(to), 0o755); err != nil {
		return t, fmt.Errorf("create folder %s: %w", to, err)
	}
	if err := writeAtomic(s.Path(moved), frontmatter.Render(t.Fields, t.Body)); err != nil {
		return t, fmt.Errorf("move %s to %s: %w", t.Name, to, err)
	}
	if err := os.Remove(s.Path(t)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return moved, fmt.Errorf("remove %s/%s after move: %w", t.Folder, t.Name, err)
	}
	return moved, nil
}

// Apply persists a transitioned task according to its effect.
func (s *Store) Apply(t domain.Task, eff domain.Effect) (domain.Task, error) {
	if eff.MoveTo == "" {
		return t, s.Save(t)
	}
	return s.Move(t, eff.MoveTo)
}

// Relocate moves an existing file, given relative to the vault root, into
// folder to without rewriting it. It returns the new vault-relative path.
func (s *Store) Relocate(rel string, to domain.Folder) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", &domain.PathOutsideVaultError{Path: rel}
	}
	src := filepath.FromSlash(rel)
	if !filepath.IsAbs(src) {
		src = filepath.Join(s.root, src)
	}
	resolved, err := filepath.EvalSymlinks(src)
	if err != nil {
		return "", &domain.PathOutsideVaultError{Path: rel}
	}
	if !s.contains(resolved) {
		return "", &domain.PathOutsideVaultError{Path: rel}
	}
	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return "", &domain.PathOutsideVaultError{Path: rel}
	}

	if err := os.MkdirAll(s.Dir(to), 0o755); err != nil {
		return "", fmt.Errorf("create folder %s: %w", to, err)
	}
	dest := filepath.Join(s.Dir(to), filepath.Base(resolved))
	if existing, err := os.Lstat(dest); err == nil {
		if os.SameFile(info, existing) {
			return s.Rel(dest), nil
		}
		return "", &domain.TaskExistsError{Name: filepath.Base(dest), Folder: to}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("relocate %s: %w", rel, err)
	}
	if err := os.Rename(resolved, dest); err != nil {
		return "", fmt.Errorf("relocate %s: %w", rel, err)
	}
	return s.Rel(dest), nil
}

// Create writes a new task file.
func (s *Store) Create(f domain.Folder, name string, fields map[string]string, body string) (domain.Task, error) {
	t := domain.Task{Name: name, Folder: f, Fields: fields, Body: body}
	if err := os.MkdirAll(s.Dir(f), 0o755); err != nil {
		return domain.Task{}, fmt.Errorf("create folder %s: %w", f, err)
	}
	if err := writeAtomic(s.Path(t), frontmatter.Render(fields, body)); err != nil {
		return domain.Task{}, fmt.Errorf("create %s/%s: %w", f, name, err)
	}
	return t, nil
}

func (s *Store) contains(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// writeAtomic replaces path with content through a temp file in the same
// directory.
func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
