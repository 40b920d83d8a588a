//go:build windows

package script

// StartCommand returns the platform start entry point for the checkout.
func StartCommand(_ string) (string, []string) {
	return "cmd.exe", []string{"/d", "/s", "/c", "call", "start.bat"}
}

// StopCommand returns the platform stop entry point for the checkout.
func StopCommand(_ string) (string, []string) {
	return "cmd.exe", []string{"/d", "/s", "/c", "call", "stop.bat"}
}

// ControlScripts lists the script files that must be executable after a
// fresh checkout. Windows needs no permission fixups.
func ControlScripts() []string { return nil }
