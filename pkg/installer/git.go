package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/mcphub/mcphub/pkg/protocol"
)

// GitInstaller installs servers by cloning their repository into a
// per-server directory.
type GitInstaller struct {
	dir    string
	logger *slog.Logger
}

var _ Installer = (*GitInstaller)(nil)

// NewGitInstaller creates an installer that clones under dir.
func NewGitInstaller(dir string, logger *slog.Logger) *GitInstaller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GitInstaller{dir: dir, logger: logger}
}

// Name returns "git".
func (g *GitInstaller) Name() string {
	return "git"
}

// Path returns the checkout directory for a server name.
func (g *GitInstaller) Path(name string) string {
	return filepath.Join(g.dir, slug(name))
}

// Installed reports whether a checkout exists for name.
func (g *GitInstaller) Installed(name string) bool {
	info, err := os.Stat(g.Path(name))
	return err == nil && info.IsDir()
}

// Install clones desc.Repository, or updates an existing checkout. A
// non-empty desc.Version is checked out as a tag, branch, or commit.
func (g *GitInstaller) Install(ctx context.Context, desc *protocol.ServerDescriptor) error {
	if desc == nil || desc.Repository == "" {
		return errors.New("git: repository is required")
	}
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return fmt.Errorf("creating servers directory: %w", err)
	}

	dest := g.Path(desc.Name)
	if g.Installed(desc.Name) {
		return g.update(ctx, dest, desc.Version)
	}
	return g.clone(ctx, desc.Repository, dest, desc.Version)
}

// Uninstall removes the checkout for name.
func (g *GitInstaller) Uninstall(_ context.Context, name string) error {
	if !g.Installed(name) {
		return fmt.Errorf("git: %q is not installed", name)
	}
	if err := os.RemoveAll(g.Path(name)); err != nil {
		return fmt.Errorf("removing checkout: %w", err)
	}
	g.logger.Info("removed checkout", "server", name)
	return nil
}

func (g *GitInstaller) clone(ctx context.Context, url, dest, ref string) error {
	g.logger.Info("cloning repository", "url", url, "dest", dest)

	repo, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{URL: url})
	if err != nil {
		os.RemoveAll(dest)
		return fmt.Errorf("cloning repository: %w", err)
	}
	if ref != "" {
		if err := checkoutRef(repo, ref); err != nil {
			return err
		}
	}

	if head, err := repo.Head(); err == nil {
		g.logger.Info("cloned repository", "commit", head.Hash().String()[:8])
	}
	return nil
}

func (g *GitInstaller) update(ctx context.Context, dest, ref string) error {
	g.logger.Info("updating checkout", "dest", dest)

	repo, err := git.PlainOpen(dest)
	if err != nil {
		return fmt.Errorf("opening checkout: %w", err)
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{Force: true, Tags: git.AllTags})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		g.logger.Warn("fetch failed, using existing checkout", "error", err)
	}

	if ref != "" {
		return checkoutRef(repo, ref)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	err = wt.PullContext(ctx, &git.PullOptions{Force: true})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) && !errors.Is(err, git.ErrNonFastForwardUpdate) {
		g.logger.Warn("pull failed, using existing checkout", "error", err)
	}
	return nil
}

// checkoutRef tries ref as a tag, a branch, a remote branch, then a commit.
func checkoutRef(repo *git.Repository, ref string) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	for _, name := range []plumbing.ReferenceName{
		plumbing.NewTagReferenceName(ref),
		plumbing.NewTagReferenceName("v" + strings.TrimPrefix(ref, "v")),
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewRemoteReferenceName("origin", ref),
	} {
		if err := wt.Checkout(&git.CheckoutOptions{Branch: name, Force: true}); err == nil {
			return nil
		}
	}

	hash := plumbing.NewHash(ref)
	if hash.IsZero() {
		return fmt.Errorf("invalid ref: %s", ref)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return fmt.Errorf("checking out ref %s: %w", ref, err)
	}
	return nil
}

// slug turns a server name into a safe directory name.
func slug(name string) string {
	r := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "@", "", "..", "_")
	return strings.ToLower(r.Replace(strings.TrimSpace(name)))
}
