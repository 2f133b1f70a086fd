//go:build !windows

package annex

import (
	"os"
	"syscall"
)

// terminateSignal sends SIGTERM, the polite "please wind down" signal
// git-annex's batch workers understand the same as any other process.
func terminateSignal(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
