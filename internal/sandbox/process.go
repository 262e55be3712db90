package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hale-labs/hale-oracle/internal/interfaces"
	"github.com/hale-labs/hale-oracle/internal/lib"
	"golang.org/x/sync/semaphore"
)

const (
	guardFileName    = "guard.py"
	deliveryFileName = "delivery.py"
)

// ProcessRunner executes delivered code in a fresh interpreter process with CPU,
// memory and wall clock ceilings, a stripped environment and a private working directory
type ProcessRunner struct {
	cfg Config
	sem *semaphore.Weighted
	log interfaces.ILogger
}

func NewProcessRunner(cfg Config, log interfaces.ILogger) *ProcessRunner {
	cfg.SetDefaults()
	return &ProcessRunner{
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		log: log,
	}
}

func (r *ProcessRunner) Config() Config {
	return r.cfg
}

func (r *ProcessRunner) Run(ctx context.Context, code string) *Result {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return systemErrorResult(err)
	}
	defer r.sem.Release(1)

	dir, err := os.MkdirTemp("", "hale-sandbox-*")
	if err != nil {
		return systemErrorResult(err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			r.log.Warnf("failed to remove sandbox dir %s: %s", dir, err)
		}
	}()

	guardPath := filepath.Join(dir, guardFileName)
	codePath := filepath.Join(dir, deliveryFileName)
	if err := os.WriteFile(guardPath, []byte(guardSource), 0o400); err != nil {
		return systemErrorResult(err)
	}
	if err := os.WriteFile(codePath, []byte(code), 0o400); err != nil {
		return systemErrorResult(err)
	}

	execCtx, cancel := context.WithTimeout(ctx, r.cfg.WallTimeout)
	defer cancel()

	stdout := newCappedBuffer(r.cfg.OutputLimit)
	stderr := newCappedBuffer(r.cfg.OutputLimit)

	cmd := exec.CommandContext(execCtx, r.cfg.Interpreter, "-I", "-B", guardPath, codePath, dir)
	cmd.Dir = dir
	cmd.Env = r.environ(dir)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configureProcess(cmd, r.cfg)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return systemErrorResult(err)
	}

	if err := cmd.Start(); err != nil {
		return systemErrorResult(err)
	}

	if err := applyLimits(cmd.Process.Pid, r.cfg); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return systemErrorResult(lib.WrapError(errors.New("failed to apply resource limits"), err))
	}

	_, _ = stdin.Write(startSignal)
	_ = stdin.Close()

	waitErr := cmd.Wait()
	return r.classify(ctx, execCtx, waitErr, stdout, stderr)
}

func (r *ProcessRunner) classify(ctx, execCtx context.Context, waitErr error, stdout, stderr *cappedBuffer) *Result {
	output := stdout.String()
	errOutput := stderr.String()

	if ctx.Err() != nil {
		return systemErrorResult(ctx.Err())
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		r.log.Warnf("execution exceeded wall clock limit %s", r.cfg.WallTimeout)
		return timeoutResult(output, r.cfg.WallTimeout)
	}

	if waitErr == nil {
		if stdout.Truncated() {
			r.log.Debugf("output truncated to %d bytes", r.cfg.OutputLimit)
		}
		return success(output)
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return systemErrorResult(waitErr)
	}

	if detail, ok := violationDetail(errOutput); ok || exitErr.ExitCode() == violationExitCode {
		r.log.Warnf("blocked operation attempted: %s", detail)
		return securityViolationResult(output, detail)
	}

	if cpuLimitExceeded(exitErr) {
		r.log.Warnf("execution exceeded cpu limit %s", r.cfg.CPULimit)
		return timeoutResult(output, r.cfg.CPULimit)
	}

	if memoryLimitExceeded(errOutput) {
		return runtimeErrorResult(output, fmt.Sprintf("memory limit of %d bytes exceeded", r.cfg.MemoryLimitBytes))
	}

	return runtimeErrorResult(output, errOutput)
}

func (r *ProcessRunner) environ(dir string) []string {
	env := make([]string, 0, len(r.cfg.EnvAllowList)+3)
	for _, key := range r.cfg.EnvAllowList {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}
	return append(env, "HOME="+dir, "TMPDIR="+dir, "PYTHONDONTWRITEBYTECODE=1")
}

func memoryLimitExceeded(stderr string) bool {
	return strings.Contains(stderr, "MemoryError")
}
