package vault_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)

func openStore(t *testing.T) *vault.Store {
	t.Helper()
	s, err := vault.Open(t.TempDir(), vault.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return s
}

func writeFile(t *testing.T, s *vault.Store, f domain.Folder, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(f), name), []byte(content), 0o644))
}

func TestOpen_CreatesStageFolders(t *testing.T) {
	s := openStore(t)

	for _, f := range domain.Folders {
		info, err := os.Stat(s.Dir(f))
		require.NoError(t, err, f)
		assert.True(t, info.IsDir())
	}
}

func TestList_SortedMarkdownOnly(t *testing.T) {
	s := openStore(t)
	writeFile(t, s, domain.FolderNeedsAction, "b.md", "x")
	writeFile(t, s, domain.FolderNeedsAction, "a.md", "x")
	writeFile(t, s, domain.FolderNeedsAction, ".gitkeep", "")
	writeFile(t, s, domain.FolderNeedsAction, "notes.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(domain.FolderNeedsAction), "dir.md"), 0o755))

	names, err := s.List(domain.FolderNeedsAction)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md"}, names)
}

func TestList_MissingFolderIsEmpty(t *testing.T) {
	s := openStore(t)
	require.NoError(t, os.RemoveAll(s.Dir(domain.FolderApproved)))

	names, err := s.List(domain.FolderApproved)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLoad(t *testing.T) {
	s := openStore(t)
	writeFile(t, s, domain.FolderNeedsAction, "TASK_a.md", "---\ntype: email\n---\n# Hi\n")

	task, err := s.Load(domain.FolderNeedsAction, "TASK_a.md")
	require.NoError(t, err)
	assert.Equal(t, "TASK_a.md", task.Name)
	assert.Equal(t, domain.FolderNeedsAction, task.Folder)
	assert.Equal(t, domain.KindEmail, task.Kind())
	assert.Equal(t, "# Hi", task.Body)
}

func TestLoad_NotFound(t *testing.T) {
	s := openStore(t)

	_, err := s.Load(domain.FolderDone, "missing.md")
	var nf *domain.TaskNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, domain.FolderDone, nf.Folder)
}

func TestLoad_RejectsPathNames(t *testing.T) {
	s := openStore(t)

	_, err := s.Load(domain.FolderDone, "../secret.md")
	var outside *domain.PathOutsideVaultError
	assert.True(t, errors.As(err, &outside))
}

func TestSave_RewritesInPlace(t *testing.T) {
	s := openStore(t)
	writeFile(t, s, domain.FolderNeedsAction, "TASK_a.md", "---\ntype: task\n---\nbody\n")
	task, err := s.Load(domain.FolderNeedsAction, "TASK_a.md")
	require.NoError(t, err)

	task.Fields["status"] = "planned"
	require.NoError(t, s.Save(task))

	data, err := os.ReadFile(s.Path(task))
	require.NoError(t, err)
	assert.Equal(t, "---\nstatus: planned\ntype: task\n---\nbody\n", string(data))

	entries, err := os.ReadDir(s.Dir(domain.FolderNeedsAction))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files may be left behind")
}

func TestMove_ExactlyOneFolder(t *testing.T) {
	s := openStore(t)
	writeFile(t, s, domain.FolderApproved, "A.md", "---\ntype: email\n---\nbody\n")
	task, err := s.Load(domain.FolderApproved, "A.md")
	require.NoError(t, err)
	task.Fields["status"] = "executed"

	moved, err := s.Move(task, domain.FolderDone)
	require.NoError(t, err)
	assert.Equal(t, domain.FolderDone, moved.Folder)

	_, err = os.Stat(filepath.Join(s.Dir(domain.FolderApproved), "A.md"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	reloaded, err := s.Load(domain.FolderDone, "A.md")
	require.NoError(t, err)
	assert.Equal(t, "executed", reloaded.Get("status"))
}

func TestApply(t *testing.T) {
	s := openStore(t)
	writeFile(t, s, domain.FolderNeedsAction, "T.md", "---\nstatus: executing\n---\n")
	task, err := s.Load(domain.FolderNeedsAction, "T.md")
	require.NoError(t, err)

	same, err := s.Apply(task, domain.Effect{})
	require.NoError(t, err)
	assert.Equal(t, domain.FolderNeedsAction, same.Folder)

	moved, err := s.Apply(task, domain.Effect{MoveTo: domain.FolderRejected})
	require.NoError(t, err)
	assert.Equal(t, domain.FolderRejected, moved.Folder)
	names, err := s.List(domain.FolderRejected)
	require.NoError(t, err)
	assert.Equal(t, []string{"T.md"}, names)
}

func TestLoadAll_ContinuesPastUnreadableFiles(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	s := openStore(t)
	writeFile(t, s, domain.FolderNeedsAction, "a.md", "---\ntype: task\n---\n")
	writeFile(t, s, domain.FolderNeedsAction, "b.md", "x")
	require.NoError(t, os.Chmod(filepath.Join(s.Dir(domain.FolderNeedsAction), "b.md"), 0o000))

	tasks, err := s.LoadAll(domain.FolderNeedsAction)
	assert.Error(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "a.md", tasks[0].Name)
}

func TestRelocate(t *testing.T) {
	s := openStore(t)
	writeFile(t, s, domain.FolderPendingApproval, "P.md", "raw content")

	rel, err := s.Relocate("Pending_Approval/P.md", domain.FolderApproved)
	require.NoError(t, err)
	assert.Equal(t, "Approved/P.md", rel)

	data, err := os.ReadFile(filepath.Join(s.Dir(domain.FolderApproved), "P.md"))
	require.NoError(t, err)
	assert.Equal(t, "raw content", string(data), "relocation does not rewrite the file")
}

func TestRelocate_KeepsExistingDestination(t *testing.T) {
	s := openStore(t)
	writeFile(t, s, domain.FolderPendingApproval, "P.md", "new")
	writeFile(t, s, domain.FolderApproved, "P.md", "already approved")

	_, err := s.Relocate("Pending_Approval/P.md", domain.FolderApproved)

	var exists *domain.TaskExistsError
	require.True(t, errors.As(err, &exists), "got %v", err)
	assert.Equal(t, domain.FolderApproved, exists.Folder)
	data, err := os.ReadFile(filepath.Join(s.Dir(domain.FolderApproved), "P.md"))
	require.NoError(t, err)
	assert.Equal(t, "already approved", string(data))
	_, err = os.Stat(filepath.Join(s.Dir(domain.FolderPendingApproval), "P.md"))
	assert.NoError(t, err, "source stays where it was")
}

func TestRelocate_SameFolderIsNoop(t *testing.T) {
	s := openStore(t)
	writeFile(t, s, domain.FolderDone, "D.md", "x")

	rel, err := s.Relocate("Done/D.md", domain.FolderDone)
	require.NoError(t, err)
	assert.Equal(t, "Done/D.md", rel)
}

func TestRelocate_RejectsBadPaths(t *testing.T) {
	s := openStore(t)
	outside := filepath.Join(t.TempDir(), "x.md")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	for _, rel := range []string{"", "../x.md", outside, "Pending_Approval/missing.md", "Done"} {
		_, err := s.Relocate(rel, domain.FolderApproved)
		var bad *domain.PathOutsideVaultError
		assert.True(t, errors.As(err, &bad), "path %q", rel)
	}
	_, err := os.Stat(outside)
	assert.NoError(t, err, "files outside the vault are never moved")
}

func TestRel(t *testing.T) {
	s := openStore(t)
	assert.Equal(t, "Needs_Action/a.md", s.Rel(filepath.Join(s.Root(), "Needs_Action", "a.md")))
	assert.False(t, strings.HasPrefix(s.Rel(s.Dir(domain.FolderDrop)), "/"))
}
