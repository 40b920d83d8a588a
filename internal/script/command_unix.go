//go:build !windows

package script

import "path/filepath"

// StartCommand returns the platform start entry point for the checkout.
func StartCommand(repoDir string) (string, []string) {
	return "bash", []string{filepath.Join(repoDir, "start-unix.sh")}
}

// StopCommand returns the platform stop entry point for the checkout.
func StopCommand(repoDir string) (string, []string) {
	return "bash", []string{filepath.Join(repoDir, "stop-unix.sh")}
}

// ControlScripts lists the script files that must be executable after a
// fresh checkout.
func ControlScripts() []string {
	return []string{"start-unix.sh", "stop-unix.sh"}
}
