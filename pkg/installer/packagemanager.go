package installer

import (
	"context"
	"fmt"

	"github.com/mcphub/mcphub/pkg/protocol"
)

// PackageManager drives a CLI package manager such as npm or pip.
type PackageManager struct {
	name          string
	command       []string
	installArgs   func(desc *protocol.ServerDescriptor) []string
	uninstallArgs func(name string) []string
	runner        *Runner
}

var _ Installer = (*PackageManager)(nil)

// NewNPM returns the node installer: `npm install -g <repository>` and
// `npm uninstall -g <name>`. command defaults to ["npm"].
func NewNPM(runner *Runner, command ...string) *PackageManager {
	if len(command) == 0 {
		command = []string{"npm"}
	}
	return &PackageManager{
		name:    "npm",
		command: command,
		runner:  runner,
		installArgs: func(desc *protocol.ServerDescriptor) []string {
			return append([]string{"install", "-g", desc.Repository}, desc.InstallArgs...)
		},
		uninstallArgs: func(name string) []string {
			return []string{"uninstall", "-g", name}
		},
	}
}

// NewPip returns the python installer: `pip install <repository>` and
// `pip uninstall -y <name>`. command defaults to ["pip"].
func NewPip(runner *Runner, command ...string) *PackageManager {
	if len(command) == 0 {
		command = []string{"pip"}
	}
	return &PackageManager{
		name:    "pip",
		command: command,
		runner:  runner,
		installArgs: func(desc *protocol.ServerDescriptor) []string {
			return append([]string{"install", desc.Repository}, desc.InstallArgs...)
		},
		uninstallArgs: func(name string) []string {
			return []string{"uninstall", "-y", name}
		},
	}
}

// Name returns the package manager name.
func (p *PackageManager) Name() string {
	return p.name
}

// Install installs desc.Repository.
func (p *PackageManager) Install(ctx context.Context, desc *protocol.ServerDescriptor) error {
	if desc == nil || desc.Repository == "" {
		return fmt.Errorf("%s: repository is required", p.name)
	}
	return p.runner.Run(ctx, OpInstall, p.argv(p.installArgs(desc)))
}

// Uninstall removes the package registered under name.
func (p *PackageManager) Uninstall(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%s: name is required", p.name)
	}
	return p.runner.Run(ctx, OpUninstall, p.argv(p.uninstallArgs(name)))
}

func (p *PackageManager) argv(args []string) []string {
	argv := make([]string, 0, len(p.command)+len(args))
	argv = append(argv, p.command...)
	return append(argv, args...)
}
