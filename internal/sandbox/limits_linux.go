//go:build linux

package sandbox

import (
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func configureProcess(cmd *exec.Cmd, cfg Config) {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if cfg.Namespaces {
		attr.Cloneflags = syscall.CLONE_NEWUSER | syscall.CLONE_NEWNET
		attr.UidMappings = []syscall.SysProcIDMap{{ContainerID: os.Getuid(), HostID: os.Getuid(), Size: 1}}
		attr.GidMappings = []syscall.SysProcIDMap{{ContainerID: os.Getgid(), HostID: os.Getgid(), Size: 1}}
	}
	cmd.SysProcAttr = attr

	// kill the whole process group, not only the interpreter
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second
}

func applyLimits(pid int, cfg Config) error {
	cpuSeconds := uint64(cfg.CPULimit.Seconds())
	if cpuSeconds == 0 {
		cpuSeconds = 1
	}
	// soft limit delivers SIGXCPU, the hard limit one second later is SIGKILL
	cpu := &unix.Rlimit{Cur: cpuSeconds, Max: cpuSeconds + 1}
	if err := unix.Prlimit(pid, unix.RLIMIT_CPU, cpu, nil); err != nil {
		return err
	}

	mem := &unix.Rlimit{Cur: cfg.MemoryLimitBytes, Max: cfg.MemoryLimitBytes}
	if err := unix.Prlimit(pid, unix.RLIMIT_AS, mem, nil); err != nil {
		return err
	}

	noCore := &unix.Rlimit{Cur: 0, Max: 0}
	return unix.Prlimit(pid, unix.RLIMIT_CORE, noCore, nil)
}

func cpuLimitExceeded(exitErr *exec.ExitError) bool {
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return false
	}
	return ws.Signal() == syscall.SIGXCPU || ws.Signal() == syscall.SIGKILL
}
