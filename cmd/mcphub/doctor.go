package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mcphub/mcphub/internal/settings"
	"github.com/mcphub/mcphub/pkg/logging"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

type checkStatus int

const (
	checkOK checkStatus = iota
	checkWarn
	checkFail
)

type checkResult struct {
	name   string
	status checkStatus
	detail string
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the config file, package managers and registry cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		results := runChecks(s)
		printChecks(cmd.OutOrStdout(), results)
		for _, r := range results {
			if r.status == checkFail {
				return fmt.Errorf("%s check failed", r.name)
			}
		}
		return nil
	},
}

func runChecks(s *settings.Settings) []checkResult {
	var results []checkResult

	store, err := openStore(s, logging.NewDiscardLogger())
	switch {
	case err != nil:
		results = append(results, checkResult{"config", checkFail, err.Error()})
	default:
		if _, statErr := os.Stat(store.Path()); os.IsNotExist(statErr) {
			results = append(results, checkResult{"config", checkWarn, store.Path() + " does not exist yet (created on first use)"})
		} else if cfg, err := store.Read(); err != nil {
			results = append(results, checkResult{"config", checkFail, err.Error()})
		} else {
			results = append(results, checkResult{"config", checkOK, fmt.Sprintf("%s (%d servers)", store.Path(), len(cfg.MCPServers))})
		}
	}

	results = append(results, lookPathCheck("npm", s.Installer.NPM))
	results = append(results, lookPathCheck("pip", s.Installer.Pip))

	if s.Client.HostPath != "" {
		if _, err := os.Stat(s.Client.HostPath); err != nil {
			results = append(results, checkResult{"host", checkFail, err.Error()})
		} else {
			results = append(results, checkResult{"host", checkOK, s.Client.HostPath})
		}
	}

	if info, err := os.Stat(s.Registry.CacheFile); err != nil {
		results = append(results, checkResult{"registry cache", checkWarn, "not cached yet"})
	} else {
		age := time.Since(info.ModTime()).Round(time.Minute)
		status := checkOK
		if age > s.Registry.TTL.Duration {
			status = checkWarn
		}
		results = append(results, checkResult{"registry cache", status, fmt.Sprintf("%s old", age)})
	}
	return results
}

func lookPathCheck(name string, argv []string) checkResult {
	if len(argv) == 0 {
		return checkResult{name, checkFail, "no command configured"}
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return checkResult{name, checkWarn, argv[0] + " not found on PATH"}
	}
	return checkResult{name, checkOK, path}
}

func printChecks(w io.Writer, results []checkResult) {
	fmt.Fprintln(w, titleStyle.Render("mcphub doctor"))
	for _, r := range results {
		var mark string
		switch r.status {
		case checkOK:
			mark = okStyle.Render("✓")
		case checkWarn:
			mark = warnStyle.Render("!")
		default:
			mark = failStyle.Render("✗")
		}
		fmt.Fprintf(w, "%s %-16s %s\n", mark, r.name, dimStyle.Render(r.detail))
	}
}
