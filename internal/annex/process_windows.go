//go:build windows

package annex

import "os"

// terminateSignal has no SIGTERM equivalent on Windows; Kill is the closest
// available approximation and InContext's grace period still applies before
// any escalation would occur.
func terminateSignal(p *os.Process) error {
	return p.Kill()
}
