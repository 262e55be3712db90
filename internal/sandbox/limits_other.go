//go:build !linux

package sandbox

import "os/exec"

// resource ceilings rely on prlimit(2), elsewhere only the wall clock limit applies
func configureProcess(cmd *exec.Cmd, cfg Config) {}

func applyLimits(pid int, cfg Config) error {
	return nil
}

func cpuLimitExceeded(exitErr *exec.ExitError) bool {
	return false
}
