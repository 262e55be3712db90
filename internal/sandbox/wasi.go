package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hale-labs/hale-oracle/internal/interfaces"
	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"golang.org/x/sync/semaphore"
)

const (
	wasmPageSize     = 64 * 1024
	wasiStdlibMount  = "/usr/local/lib"
	wasiProgramName  = "python"
	wasiStdinMarker  = "-"
	wasiWorkDir      = "/work" // not mounted, so guest writes fail
	maxWasmPageLimit = 65536
)

var ErrWasiInit = errors.New("failed to initialize wasi interpreter")

type WasiConfig struct {
	ModulePath string // python.wasm built for wasi_snapshot_preview1
	StdlibDir  string // host directory with the interpreter's standard library
}

// WasiRunner executes delivered code in a WebAssembly build of the interpreter. The
// guest has no process, socket or writable filesystem capabilities at all, only the
// read-only standard library mount and its stdio
type WasiRunner struct {
	cfg      Config
	wasiCfg  WasiConfig
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	sem      *semaphore.Weighted
	log      interfaces.ILogger
}

func NewWasiRunner(ctx context.Context, cfg Config, wasiCfg WasiConfig, log interfaces.ILogger) (*WasiRunner, error) {
	cfg.SetDefaults()

	wasm, err := os.ReadFile(wasiCfg.ModulePath)
	if err != nil {
		return nil, lib.WrapError(ErrWasiInit, err)
	}

	pages := uint32(cfg.MemoryLimitBytes / wasmPageSize)
	if pages == 0 || pages > maxWasmPageLimit {
		pages = maxWasmPageLimit
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(pages))

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, lib.WrapError(ErrWasiInit, err)
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, lib.WrapError(ErrWasiInit, err)
	}

	log.Infof("wasi interpreter compiled from %s, memory limit %d pages", wasiCfg.ModulePath, pages)

	return &WasiRunner{
		cfg:      cfg,
		wasiCfg:  wasiCfg,
		runtime:  rt,
		compiled: compiled,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		log:      log,
	}, nil
}

func (r *WasiRunner) Run(ctx context.Context, code string) *Result {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return systemErrorResult(err)
	}
	defer r.sem.Release(1)

	execCtx, cancel := context.WithTimeout(ctx, r.cfg.WallTimeout)
	defer cancel()

	stdin := bytes.NewReader(append(append([]byte{}, startSignal...), code...))
	stdout := newCappedBuffer(r.cfg.OutputLimit)
	stderr := newCappedBuffer(r.cfg.OutputLimit)

	fsCfg := wazero.NewFSConfig()
	if r.wasiCfg.StdlibDir != "" {
		fsCfg = fsCfg.WithReadOnlyDirMount(r.wasiCfg.StdlibDir, wasiStdlibMount)
	}

	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(wasiProgramName, "-I", "-B", "-c", guardSource, wasiStdinMarker, wasiWorkDir).
		WithStdin(stdin).
		WithStdout(stdout).
		WithStderr(stderr).
		WithFSConfig(fsCfg)

	mod, err := r.runtime.InstantiateModule(execCtx, r.compiled, modCfg)
	if mod != nil {
		_ = mod.Close(context.Background())
	}

	return r.classify(ctx, execCtx, err, stdout, stderr)
}

func (r *WasiRunner) classify(ctx, execCtx context.Context, runErr error, stdout, stderr *cappedBuffer) *Result {
	output := stdout.String()
	errOutput := stderr.String()

	if ctx.Err() != nil {
		return systemErrorResult(ctx.Err())
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		r.log.Warnf("wasi execution exceeded wall clock limit %s", r.cfg.WallTimeout)
		return timeoutResult(output, r.cfg.WallTimeout)
	}
	if runErr == nil {
		return success(output)
	}

	var exitErr *sys.ExitError
	if !errors.As(runErr, &exitErr) {
		// traps, including memory growth past the page limit
		return runtimeErrorResult(output, fmt.Sprintf("%s\n%s", errOutput, runErr))
	}

	switch exitErr.ExitCode() {
	case 0:
		return success(output)
	case violationExitCode:
		detail, _ := violationDetail(errOutput)
		return securityViolationResult(output, detail)
	}
	if detail, ok := violationDetail(errOutput); ok {
		return securityViolationResult(output, detail)
	}
	return runtimeErrorResult(output, errOutput)
}

func (r *WasiRunner) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}
