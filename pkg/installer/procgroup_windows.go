//go:build windows

package installer

import "os/exec"

// killProcessGroup is a no-op on Windows; WaitDelay bounds lingering pipes.
func killProcessGroup(*exec.Cmd) {}
