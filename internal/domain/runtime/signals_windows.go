//go:build windows

package runtime

import (
	"os"
	"os/exec"
)

func setPlatformAttrs(cmd *exec.Cmd) {}

// Windows has no SIGTERM; both paths terminate outright.
func signalTerm(pids []int) {
	signalKill(pids)
}

func signalKill(pids []int) {
	for _, pid := range pids {
		if proc, err := os.FindProcess(pid); err == nil {
			_ = proc.Kill()
		}
	}
}
