package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupSuffix     = ".mcphub-backup-"
	backupTimeFormat = "20060102-150405.000"
	maxBackups       = 3
)

// now is replaced in tests.
var now = time.Now

// createBackup copies path to a timestamped sibling and prunes old copies.
// Returns "" if path does not exist.
func createBackup(path string) (string, error) {
	if !fileExists(path) {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file for backup: %w", err)
	}

	backupPath := path + backupSuffix + now().Format(backupTimeFormat)
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing backup: %w", err)
	}

	// Pruning failures leave extra backups behind; the write itself succeeded.
	_ = pruneBackups(path)

	return backupPath, nil
}

// listBackups returns backup files for path, oldest first.
func listBackups(path string) ([]string, error) {
	dir := filepath.Dir(path)
	prefix := filepath.Base(path) + backupSuffix

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, entry.Name()))
		}
	}
	// The timestamp suffix sorts lexicographically.
	sort.Strings(backups)
	return backups, nil
}

// pruneBackups keeps only the most recent maxBackups backup files.
func pruneBackups(path string) error {
	backups, err := listBackups(path)
	if err != nil {
		return err
	}
	if len(backups) <= maxBackups {
		return nil
	}
	for _, p := range backups[:len(backups)-maxBackups] {
		os.Remove(p)
	}
	return nil
}
