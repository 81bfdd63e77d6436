//go:build !unix

package procgroup

import (
	"os"
	"os/exec"
)

func Set(cmd *exec.Cmd) {}

func Kill(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func ExitSignal(ps *os.ProcessState) string { return "" }
