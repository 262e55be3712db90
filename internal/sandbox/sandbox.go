package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FailureKind distinguishes the ways an execution can fail. None of them is fatal to the caller
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureTimeout           FailureKind = "TIMEOUT"
	FailureSecurityViolation FailureKind = "SECURITY_VIOLATION"
	FailureRuntimeError      FailureKind = "RUNTIME_ERROR"
	FailureSystemError       FailureKind = "SYSTEM_ERROR"
)

const (
	DefaultOutputLimit = 10_000
	DefaultCPULimit    = 5 * time.Second
	DefaultWallTimeout = 7 * time.Second
	DefaultMemoryLimit = 256 * 1024 * 1024

	DefaultMaxConcurrent = 4

	// exit code used by the guard when a blocked operation is attempted
	violationExitCode = 86
	violationMarker   = "SANDBOX_SECURITY_VIOLATION"
)

// Result is produced per invocation and never persisted
type Result struct {
	Success bool        `json:"success"`
	Output  string      `json:"output"`
	Error   string      `json:"error,omitempty"`
	Failure FailureKind `json:"failure,omitempty"`
}

type Runner interface {
	Run(ctx context.Context, code string) *Result
}

type Config struct {
	Interpreter      string
	CPULimit         time.Duration
	WallTimeout      time.Duration
	MemoryLimitBytes uint64
	OutputLimit      int
	EnvAllowList     []string
	Namespaces       bool // run in fresh user+network namespaces, linux only
	MaxConcurrent    int
}

func (c *Config) SetDefaults() {
	if c.Interpreter == "" {
		c.Interpreter = "python3"
	}
	if c.CPULimit == 0 {
		c.CPULimit = DefaultCPULimit
	}
	if c.WallTimeout == 0 {
		c.WallTimeout = DefaultWallTimeout
	}
	// wall clock ceiling must stay above the cpu ceiling
	if c.WallTimeout <= c.CPULimit {
		c.WallTimeout = c.CPULimit + 2*time.Second
	}
	if c.MemoryLimitBytes == 0 {
		c.MemoryLimitBytes = DefaultMemoryLimit
	}
	if c.OutputLimit == 0 {
		c.OutputLimit = DefaultOutputLimit
	}
	if c.EnvAllowList == nil {
		c.EnvAllowList = []string{"PATH"}
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
}

func success(output string) *Result {
	return &Result{Success: true, Output: output}
}

func failure(kind FailureKind, output string, msg string) *Result {
	return &Result{Success: false, Output: output, Error: msg, Failure: kind}
}

func timeoutResult(output string, limit time.Duration) *Result {
	return failure(FailureTimeout, output, fmt.Sprintf("Execution timed out after %s (potential infinite loop or resource exhaustion)", limit))
}

func securityViolationResult(output string, detail string) *Result {
	msg := "Security violation: Blocked system call attempted."
	if detail != "" {
		msg += " " + detail
	}
	return failure(FailureSecurityViolation, output, msg)
}

func runtimeErrorResult(output string, stderr string) *Result {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = "Process exited with non-zero status"
	}
	return failure(FailureRuntimeError, output, msg)
}

func systemErrorResult(err error) *Result {
	return failure(FailureSystemError, "", fmt.Sprintf("Sandbox System Error: %s", err))
}

// violationDetail extracts the blocked event name from the guard's stderr line
func violationDetail(stderr string) (string, bool) {
	idx := strings.Index(stderr, violationMarker)
	if idx < 0 {
		return "", false
	}
	line := stderr[idx+len(violationMarker):]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	return strings.TrimSpace(strings.TrimPrefix(line, ":")), true
}
