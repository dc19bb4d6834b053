//go:build unix

package worker

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the child in its own process group so killProcessGroup
// can reap any helper processes it forks (spec.md 4.3's worker resource
// discipline extended per SPEC_FULL.md to whole process groups).
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid := cmd.Process.Pid
	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil {
		// Fall back to killing just the child if the group signal failed
		// (e.g. it never actually became its own group leader).
		cmd.Process.Kill()
	}
}
