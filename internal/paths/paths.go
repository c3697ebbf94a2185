// Package paths resolves the filesystem layout shared by every component.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// Layout is the set of directories the pipeline works in. Every field is an
// absolute path.
type Layout struct {
	Root  string
	Vault string
	Drop  string
	Logs  string
	State string
	Apps  string
}

// Overrides carries explicitly configured locations. Empty fields fall back
// to defaults derived from Root.
type Overrides struct {
	Root  string
	Vault string
	Drop  string
	Logs  string
	State string
	Apps  string
}

// Resolve fills in defaults: vault = root/vault, drop = vault/Inbox/Drop,
// logs = vault/Logs, state = root/.state, apps = dir(vault)/apps. Without a
// root the working directory is used.
func Resolve(o Overrides) (Layout, error) {
	root := o.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Layout{}, err
		}
		root = wd
	}

	var l Layout
	var err error
	if l.Root, err = abs(root); err != nil {
		return Layout{}, err
	}
	if l.Vault, err = absOr(o.Vault, filepath.Join(l.Root, "vault")); err != nil {
		return Layout{}, err
	}
	if l.Drop, err = absOr(o.Drop, filepath.Join(l.Vault, "Inbox", "Drop")); err != nil {
		return Layout{}, err
	}
	if l.Logs, err = absOr(o.Logs, filepath.Join(l.Vault, "Logs")); err != nil {
		return Layout{}, err
	}
	if l.State, err = absOr(o.State, filepath.Join(l.Root, ".state")); err != nil {
		return Layout{}, err
	}
	if l.Apps, err = absOr(o.Apps, filepath.Join(filepath.Dir(l.Vault), "apps")); err != nil {
		return Layout{}, err
	}
	return l, nil
}

func absOr(v, fallback string) (string, error) {
	if v == "" {
		return fallback, nil
	}
	return abs(v)
}

// abs expands a leading "~" and makes the path absolute.
func abs(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}
