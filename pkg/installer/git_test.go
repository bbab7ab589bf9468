package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/mcphub/mcphub/pkg/protocol"
)

// newSourceRepo creates a local repository with one commit.
func newSourceRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "server.py"), []byte("print('hello')\n"), 0644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("server.py"); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return dir
}

func TestGitInstaller_InstallAndUninstall(t *testing.T) {
	src := newSourceRepo(t)
	g := NewGitInstaller(filepath.Join(t.TempDir(), "servers"), nil)

	desc := &protocol.ServerDescriptor{Name: "Hello Server", Repository: src, Runtime: protocol.RuntimeGit}
	if err := g.Install(context.Background(), desc); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !g.Installed("Hello Server") {
		t.Fatal("expected checkout to exist")
	}
	if filepath.Base(g.Path("Hello Server")) != "hello_server" {
		t.Errorf("unexpected checkout dir %q", g.Path("Hello Server"))
	}
	if _, err := os.Stat(filepath.Join(g.Path("Hello Server"), "server.py")); err != nil {
		t.Errorf("expected server.py in checkout: %v", err)
	}

	// A second install updates in place.
	if err := g.Install(context.Background(), desc); err != nil {
		t.Fatalf("second Install: %v", err)
	}

	if err := g.Uninstall(context.Background(), "Hello Server"); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if g.Installed("Hello Server") {
		t.Error("expected checkout to be removed")
	}
}

func TestGitInstaller_UninstallMissing(t *testing.T) {
	g := NewGitInstaller(t.TempDir(), nil)
	if err := g.Uninstall(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for missing checkout")
	}
}

func TestGitInstaller_CloneFailureCleansUp(t *testing.T) {
	g := NewGitInstaller(t.TempDir(), nil)
	desc := &protocol.ServerDescriptor{Name: "broken", Repository: filepath.Join(t.TempDir(), "nope")}

	if err := g.Install(context.Background(), desc); err == nil {
		t.Fatal("expected clone error")
	}
	if g.Installed("broken") {
		t.Error("failed clone left a directory behind")
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Hello Server":        "hello_server",
		"@scope/pkg":          "scope_pkg",
		"../escape":           "__escape",
		"  padded  ":          "padded",
		"already_safe-name.1": "already_safe-name.1",
	}
	for in, want := range tests {
		if got := slug(in); got != want {
			t.Errorf("slug(%q) = %q, want %q", in, got, want)
		}
	}
}
