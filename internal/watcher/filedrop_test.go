package watcher_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/eventlog"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
	"github.com/92Bilal26/ai-junior-bilal/internal/watcher"
)

var now = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store   *vault.Store
	dropDir string
	state   string
	watcher *watcher.FileDrop
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := vault.Open(filepath.Join(root, "vault"), vault.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	drop := store.Dir(domain.FolderDrop)
	state := filepath.Join(root, ".state", "file_drop_watcher.json")
	logger := eventlog.NewLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), store.Dir(domain.FolderLogs), eventlog.FileDropWatcher)
	return &fixture{store: store, dropDir: drop, state: state, watcher: watcher.NewFileDrop(store, drop, state, logger)}
}

func (f *fixture) drop(t *testing.T, name, content string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(f.dropDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestCheck_CreatesTaskAndInboxCopy(t *testing.T) {
	f := newFixture(t)
	f.drop(t, "Quarterly Report.pdf", "pdf bytes", now.Add(-time.Hour))

	n, err := f.watcher.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	names, err := f.store.List(domain.FolderNeedsAction)
	require.NoError(t, err)
	require.Equal(t, []string{"FILE_quarterly_report_2024-05-01T100000Z.md"}, names)

	task, err := f.store.Load(domain.FolderNeedsAction, names[0])
	require.NoError(t, err)
	assert.Equal(t, domain.KindFileDrop, task.Kind())
	assert.Equal(t, domain.StatusNew, task.Status())
	assert.Equal(t, "drop_folder", task.Get("source"))
	assert.Equal(t, "normal", task.Get("priority"))
	assert.Equal(t, "Quarterly Report.pdf", task.Get("original_name"))
	assert.Equal(t, "2024-05-01T10:00:00Z", task.Get("created_at"))
	assert.Contains(t, task.Body, "# File Drop\nA new file was dropped for processing.")
	assert.Contains(t, task.Body, "- [ ] Request approval if needed")

	copyPath := task.Get("inbox_copy")
	assert.Equal(t, filepath.Join(f.store.Dir(domain.FolderInbox), "quarterly_report.pdf"), copyPath)
	data, err := os.ReadFile(copyPath)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))

	lines, err := eventlog.Tail(eventlog.Path(f.store.Dir(domain.FolderLogs), eventlog.FileDropWatcher), 0)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "] Created task FILE_quarterly_report_2024-05-01T100000Z.md for Quarterly Report.pdf"))

	_, err = os.Stat(f.state)
	assert.NoError(t, err)
}

func TestCheck_SkipsUnchangedAndPicksUpModified(t *testing.T) {
	f := newFixture(t)
	first := now.Add(-2 * time.Hour)
	f.drop(t, "notes.txt", "v1", first)
	f.drop(t, ".hidden", "x", first)
	require.NoError(t, os.MkdirAll(filepath.Join(f.dropDir, "sub"), 0o755))

	n, err := f.watcher.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.watcher.Check(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "unchanged file must not be re-ingested")

	second := now.Add(-time.Hour)
	f.drop(t, "notes.txt", "v2", second)
	n, err = f.watcher.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	inbox, err := os.ReadDir(f.store.Dir(domain.FolderInbox))
	require.NoError(t, err)
	var copies []string
	for _, e := range inbox {
		if !e.IsDir() {
			copies = append(copies, e.Name())
		}
	}
	assert.ElementsMatch(t, []string{"notes.txt", "notes_" + itoa(second.Unix()) + ".txt"}, copies)
}

func TestCheck_FailedTaskCreationLeavesNoInboxCopy(t *testing.T) {
	f := newFixture(t)
	needsAction := f.store.Dir(domain.FolderNeedsAction)
	require.NoError(t, os.RemoveAll(needsAction))
	require.NoError(t, os.WriteFile(needsAction, []byte("not a folder"), 0o644))
	f.drop(t, "invoice.pdf", "pdf", now.Add(-time.Minute))

	n, err := f.watcher.Check(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
	entries, err := os.ReadDir(f.store.Dir(domain.FolderInbox))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "invoice.pdf", e.Name())
	}

	require.NoError(t, os.Remove(needsAction))
	n, err = f.watcher.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the file is retried on the next scan")

	names, err := f.store.List(domain.FolderNeedsAction)
	require.NoError(t, err)
	require.Len(t, names, 1)
	task, err := f.store.Load(domain.FolderNeedsAction, names[0])
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.store.Dir(domain.FolderInbox), "invoice.pdf"), task.Get("inbox_copy"))
}

func TestCheck_StateSurvivesNewWatcher(t *testing.T) {
	f := newFixture(t)
	f.drop(t, "a.csv", "1,2", now.Add(-time.Minute))
	_, err := f.watcher.Check(context.Background())
	require.NoError(t, err)

	again := watcher.NewFileDrop(f.store, f.dropDir, f.state, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := again.Check(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCheck_CorruptStateStartsOver(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.state), 0o755))
	require.NoError(t, os.WriteFile(f.state, []byte("{not json"), 0o644))
	f.drop(t, "a.csv", "1,2", now.Add(-time.Minute))

	n, err := f.watcher.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
