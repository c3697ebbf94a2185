package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
)

// CompletionPredicate decides whether an executing task has produced its
// output. ok is false while the work is not observable yet.
type CompletionPredicate interface {
	Detect(t domain.Task) (output string, ok bool, err error)
}

// PredicateFunc adapts a function to CompletionPredicate.
type PredicateFunc func(t domain.Task) (string, bool, error)

func (f PredicateFunc) Detect(t domain.Task) (string, bool, error) { return f(t) }

// AppLanguages are the folders under the apps root probed for output.
var AppLanguages = []string{"html", "backend", "frontend", "python", "javascript", "react"}

var appPathPrefixes = []string{"apps/html/", "apps/backend/", "apps/frontend/"}

// AppDirectory detects a scaffolded application under Root.
type AppDirectory struct {
	Root string
}

func (a AppDirectory) Detect(t domain.Task) (string, bool, error) {
	app := AppName(t.Get(domain.FieldTitle), t.Instruction())
	if app == "" {
		return "", false, nil
	}
	for _, lang := range AppLanguages {
		dir := filepath.Join(a.Root, lang, app)
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) > 0 {
			return fmt.Sprintf("App created: apps/%s/%s/", lang, app), true, nil
		}
	}
	return "", false, nil
}

// AppName derives the application folder name: the text after the last ':'
// of the title, else the path segment following a known apps/<lang>/ prefix
// in the instruction.
func AppName(title, instruction string) string {
	if i := strings.LastIndex(title, ":"); i >= 0 {
		return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title[i+1:])), " ", "_")
	}
	for _, prefix := range appPathPrefixes {
		_, rest, ok := strings.Cut(instruction, prefix)
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(rest, "/")
		return strings.TrimSpace(name)
	}
	return ""
}
