// Package installer runs the external package managers that install and
// remove MCP servers.
package installer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcphub/mcphub/pkg/protocol"
)

//go:generate mockgen -source=installer.go -destination=installermock/installer.go -package=installermock Installer

// Installer installs and uninstalls servers of one runtime family.
type Installer interface {
	// Name identifies the package manager in logs and errors.
	Name() string
	Install(ctx context.Context, desc *protocol.ServerDescriptor) error
	Uninstall(ctx context.Context, name string) error
}

// ErrTimeout is wrapped when a package manager exceeds its time budget.
var ErrTimeout = errors.New("package manager timed out")

// Op names the operation an ExitError came from.
type Op string

const (
	OpInstall   Op = "installation"
	OpUninstall Op = "uninstallation"
)

// ExitError reports a package manager that exited non-zero.
type ExitError struct {
	Op      Op
	Command string
	Code    int
	// Stderr holds the last line the process wrote to stderr, if any.
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s failed with code %d", e.Op, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// SpawnError reports a package manager that could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Set selects an Installer by runtime tag.
type Set struct {
	Node   Installer
	Python Installer
	// Git is optional; without it git descriptors fall back to Python.
	Git *GitInstaller
}

// ForRuntime picks the installer for a descriptor's runtime. Anything other
// than node or git is treated as a Python package.
func (s *Set) ForRuntime(r protocol.Runtime) Installer {
	switch {
	case r == protocol.RuntimeNode:
		return s.Node
	case r == protocol.RuntimeGit && s.Git != nil:
		return s.Git
	default:
		return s.Python
	}
}

// ForEntry picks the installer that owns an installed config entry. The
// entry's command decides between npm and pip; git checkouts are recognized
// by their clone directory.
func (s *Set) ForEntry(name string, entry protocol.ServerEntry) Installer {
	if entry.Command == protocol.RuntimeNode.Command() {
		return s.Node
	}
	if s.Git != nil && s.Git.Installed(name) {
		return s.Git
	}
	return s.Python
}
