// Package watcher turns files dropped into a folder into vault tasks.
package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/frontmatter"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
)

const fileDropBody = `
# File Drop
A new file was dropped for processing.

## Suggested Actions
- [ ] Review file contents
- [ ] Determine required updates
- [ ] Request approval if needed
`

// dropState maps absolute file paths to the mtime (seconds) last processed.
type dropState struct {
	Processed map[string]float64 `json:"processed"`
}

// FileDrop polls a drop folder. A file is picked up again whenever its
// mtime changes.
type FileDrop struct {
	store     *vault.Store
	dropDir   string
	statePath string
	logger    *slog.Logger
}

// NewFileDrop returns a watcher for dropDir that remembers processed files
// in statePath.
func NewFileDrop(store *vault.Store, dropDir, statePath string, logger *slog.Logger) *FileDrop {
	return &FileDrop{store: store, dropDir: dropDir, statePath: statePath, logger: logger}
}

// Check scans the drop folder once and returns the number of tasks created.
func (w *FileDrop) Check(ctx context.Context) (int, error) {
	_, span := telemetry.Tracer("watcher").Start(ctx, "filedrop.check")
	defer span.End()

	if err := os.MkdirAll(w.dropDir, 0o755); err != nil {
		return 0, fmt.Errorf("create drop folder: %w", err)
	}
	state, err := w.load()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load state")
		return 0, err
	}

	entries, err := os.ReadDir(w.dropDir)
	if err != nil {
		return 0, fmt.Errorf("read drop folder: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var (
		count int
		errs  []error
	)
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		src, err := filepath.Abs(filepath.Join(w.dropDir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		info, err := e.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		mtime := float64(info.ModTime().UnixNano()) / 1e9
		if seen, ok := state.Processed[src]; ok && seen == mtime {
			continue
		}

		task, err := w.ingest(src, info)
		if err != nil {
			w.logger.Error("Failed to ingest "+e.Name()+": "+err.Error(), slog.String("file", src))
			errs = append(errs, err)
			continue
		}
		state.Processed[src] = mtime
		count++
		telemetry.FileDropsTotal.Inc()
		w.logger.Info(fmt.Sprintf("Created task %s for %s", task.Name, e.Name()))
	}

	if err := w.save(state); err != nil {
		errs = append(errs, err)
	}
	span.SetAttributes(attribute.Int("filedrop.created", count))
	return count, errors.Join(errs...)
}

func (w *FileDrop) ingest(src string, info fs.FileInfo) (domain.Task, error) {
	copyPath, err := w.copyToInbox(src, info)
	if err != nil {
		return domain.Task{}, err
	}

	now := w.store.Now()
	name := info.Name()
	slug := frontmatter.Slugify(strings.TrimSuffix(name, filepath.Ext(name)))
	fields := map[string]string{
		domain.FieldType:      string(domain.KindFileDrop),
		"source":              "drop_folder",
		"priority":            "normal",
		domain.FieldStatus:    string(domain.StatusNew),
		domain.FieldCreatedAt: frontmatter.Timestamp(now),
		"original_name":       name,
		"inbox_copy":          copyPath,
	}
	taskName := fmt.Sprintf("FILE_%s_%s.md", slug, frontmatter.Stamp(now))
	task, err := w.store.Create(domain.FolderNeedsAction, taskName, fields, fileDropBody)
	if err != nil {
		// Without a task the copy is orphaned; the next scan makes a fresh one.
		if rmErr := os.Remove(copyPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			w.logger.Warn("could not remove inbox copy", slog.String("path", copyPath), slog.String("error", rmErr.Error()))
		}
		return domain.Task{}, err
	}
	return task, nil
}

// copyToInbox copies src next to earlier drops, keeping its mtime.
func (w *FileDrop) copyToInbox(src string, info fs.FileInfo) (string, error) {
	inbox := w.store.Dir(domain.FolderInbox)
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		return "", err
	}
	ext := filepath.Ext(info.Name())
	slug := frontmatter.Slugify(strings.TrimSuffix(info.Name(), ext))
	target := filepath.Join(inbox, slug+ext)
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(inbox, fmt.Sprintf("%s_%d%s", slug, info.ModTime().Unix(), ext))
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := os.Create(target)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("copy %s: %w", info.Name(), err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	_ = os.Chtimes(target, info.ModTime(), info.ModTime())
	return target, nil
}

func (w *FileDrop) load() (dropState, error) {
	state := dropState{Processed: map[string]float64{}}
	data, err := os.ReadFile(w.statePath)
	if errors.Is(err, fs.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("read %s: %w", w.statePath, err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		w.logger.Warn("ignoring unreadable watcher state", slog.String("path", w.statePath), slog.String("error", err.Error()))
		return dropState{Processed: map[string]float64{}}, nil
	}
	if state.Processed == nil {
		state.Processed = map[string]float64{}
	}
	return state, nil
}

func (w *FileDrop) save(state dropState) error {
	if err := os.MkdirAll(filepath.Dir(w.statePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(w.statePath, data, 0o644)
}
