package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hale-labs/hale-oracle/internal/bridge"
	"github.com/hale-labs/hale-oracle/internal/config"
	"github.com/hale-labs/hale-oracle/internal/handlers/httphandlers"
	"github.com/hale-labs/hale-oracle/internal/interfaces"
	"github.com/hale-labs/hale-oracle/internal/judge"
	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/hale-labs/hale-oracle/internal/oracle"
	"github.com/hale-labs/hale-oracle/internal/pipeline"
	"github.com/hale-labs/hale-oracle/internal/repositories/mappings"
	"github.com/hale-labs/hale-oracle/internal/repositories/solana"
	"github.com/hale-labs/hale-oracle/internal/sandbox"
	"github.com/hale-labs/hale-oracle/internal/settlement"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout     = 10 * time.Second
	startupProbeTimeout = 15 * time.Second
)

func main() {
	err := start()
	if err != nil {
		panic(err)
	}
	os.Exit(0)
}

func start() error {
	if err := config.LoadEnvFiles(config.DefaultEnvFiles...); err != nil {
		return err
	}

	var cfg config.Config
	err := config.LoadConfig(&cfg, &os.Args)
	if err != nil {
		return err
	}

	newLogger := func(level string, component string) (*lib.Logger, error) {
		return lib.NewLogger(lib.LoggerOptions{
			Level:      level,
			Color:      cfg.Log.Color,
			IsProd:     cfg.Log.IsProd,
			JSON:       cfg.Log.JSON,
			FolderPath: cfg.Log.FolderPath,
			Component:  component,
		})
	}

	log, err := newLogger(cfg.Log.LevelApp, "APP")
	if err != nil {
		return err
	}
	judgeLog, err := newLogger(cfg.Log.LevelJudge, "JUDGE")
	if err != nil {
		return err
	}
	sandboxLog, err := newLogger(cfg.Log.LevelSandbox, "SANDBOX")
	if err != nil {
		return err
	}
	settlementLog, err := newLogger(cfg.Log.LevelSettlement, "SETTLEMENT")
	if err != nil {
		return err
	}
	bridgeLog, err := newLogger(cfg.Log.LevelBridge, "BRIDGE")
	if err != nil {
		return err
	}
	httpLog, err := newLogger(cfg.Log.LevelHTTP, "HTTP")
	if err != nil {
		return err
	}

	defer func() {
		_ = log.Sync()
	}()

	log.Infof("hale oracle %s starting in %s mode", config.BuildVersion, cfg.Environment)
	log.Debugf("config: %+v", cfg.GetSanitized())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-shutdownChan
		log.Warnf("Received signal: %s", s)
		cancel()

		s = <-shutdownChan
		log.Warnf("Received signal: %s. Forcing exit...", s)
		os.Exit(1)
	}()

	// settlement

	engine, err := newSettlementEngine(ctx, &cfg, settlementLog)
	if err != nil {
		return err
	}

	// verification

	primary, closePrimary, err := newPrimaryJudge(ctx, &cfg, judgeLog)
	if err != nil {
		return err
	}
	defer closePrimary()

	runner, closeRunner, err := newSandboxRunner(ctx, &cfg, sandboxLog)
	if err != nil {
		return err
	}
	defer closeRunner()

	reviews := pipeline.NewFileReviewQueue(cfg.Review.QueueDir, log.Named("REVIEW"))
	verifier := pipeline.NewPipeline(primary, judge.NewHeuristicJudge(), runner, reviews, judge.QuotaPolicy(cfg.Judge.QuotaPolicy), log.Named("PIPELINE"))
	orc := oracle.NewOracle(verifier, engine, log.Named("ORACLE"))

	// bridge

	store, err := newMappingStore(&cfg, bridgeLog)
	if err != nil {
		return err
	}

	solanaClient, err := solana.DialContext(ctx, cfg.Bridge.SolanaRPCURL, bridgeLog.Named("SOLANA"))
	if err != nil {
		return err
	}
	defer solanaClient.Close()

	relayer := bridge.NewRelayer(store, solanaClient, engine, cfg.Bridge.PollInterval, cfg.Chain.RPCURL, bridgeLog)
	if err := relayer.Load(ctx); err != nil {
		return err
	}
	monitor := bridge.NewMonitor(ctx, relayer, bridgeLog)

	// http

	primaryName := "none"
	if primary != nil {
		primaryName = primary.Name()
	}
	handl := httphandlers.NewHTTPHandler(orc, relayer, monitor, verifier, &cfg, httphandlers.ServiceInfo{
		Mode:          cfg.Environment,
		PrimaryJudge:  primaryName,
		SandboxMode:   cfg.Sandbox.Mode,
		OracleAddress: engine.SignerAddress(),
	}, httpLog)

	server := &http.Server{
		Addr:              cfg.Web.Address,
		Handler:           handl,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("http server is listening: %s", cfg.Web.Address)
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Bridge.Enable {
		if err := monitor.Start(); err != nil {
			return err
		}
	} else {
		log.Infof("bridge monitor disabled, start it with POST /api/bridge/monitor/start")
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return monitor.Stop(stopCtx)
	})

	err = g.Wait()
	log.Infof("App exited due to %v", err)
	return err
}

func newSettlementEngine(ctx context.Context, cfg *config.Config, log interfaces.ILogger) (*settlement.Engine, error) {
	escrowABI, err := settlement.LoadEscrowABI(cfg.Chain.EscrowABIPath)
	if err != nil {
		return nil, err
	}

	signer, err := lib.LoadSigningKey(cfg.Chain.PrivateKey, cfg.Chain.Mnemonic)
	if errors.Is(err, lib.ErrNoKeyMaterial) {
		log.Warnf("no oracle signing key configured, settlements will fail")
	} else if err != nil {
		return nil, err
	}

	var client settlement.EthereumClient
	if cfg.Chain.RPCURL != "" {
		ethClient, err := settlement.DialContext(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return nil, err
		}
		client = ethClient
	} else {
		log.Warnf("no destination chain rpc configured, settlements will fail")
	}

	engine := settlement.NewEngine(client, signer, escrowABI, settlement.Config{
		DefaultEscrow:         cfg.Chain.EscrowAddress,
		SkipWait:              cfg.Chain.SkipTxWait,
		ReleaseReceiptTimeout: cfg.Chain.ReleaseReceiptTimeout,
		RefundReceiptTimeout:  cfg.Chain.RefundReceiptTimeout,
		DefaultGasLimit:       cfg.Chain.DefaultGasLimit,
	}, log)

	if client != nil {
		err := lib.Poll(ctx, startupProbeTimeout, func() error {
			return engine.CheckConnection(ctx)
		}, time.Second)
		if err != nil {
			log.Warnf("destination chain not reachable at startup: %s", err)
		} else {
			log.Infof("connected to destination chain %s as %s", cfg.Chain.RPCURL, engine.SignerAddress())
		}
	}

	return engine, nil
}

func newPrimaryJudge(ctx context.Context, cfg *config.Config, log interfaces.ILogger) (judge.Judge, func(), error) {
	noop := func() {}

	if cfg.Judge.Mock {
		log.Warnf("mock judge enabled, every delivery passes the primary stage")
		return judge.NewMockJudge(cfg.Judge.MockDelay), noop, nil
	}
	if cfg.Judge.GeminiAPIKey == "" {
		log.Warnf("no judge api key configured, using the deterministic heuristic only")
		return nil, noop, nil
	}

	systemPrompt, err := judge.LoadSystemPrompt(cfg.Judge.SystemPromptPath)
	if err != nil {
		return nil, noop, err
	}

	gemini, err := judge.NewGeminiJudge(ctx, judge.GeminiConfig{
		APIKey:       cfg.Judge.GeminiAPIKey,
		Model:        cfg.Judge.GeminiModel,
		SystemPrompt: systemPrompt,
		RPM:          cfg.Judge.RPM,
		Timeout:      cfg.Judge.Timeout,
	}, log)
	if err != nil {
		return nil, noop, err
	}

	return gemini, func() { _ = gemini.Close() }, nil
}

func newSandboxRunner(ctx context.Context, cfg *config.Config, log interfaces.ILogger) (sandbox.Runner, func(), error) {
	noop := func() {}

	sandboxCfg := sandbox.Config{
		Interpreter:      cfg.Sandbox.Interpreter,
		CPULimit:         cfg.Sandbox.CPULimit,
		WallTimeout:      cfg.Sandbox.WallTimeout,
		MemoryLimitBytes: cfg.Sandbox.MemoryLimitMB << 20,
		OutputLimit:      cfg.Sandbox.OutputLimit,
		Namespaces:       cfg.Sandbox.Namespaces,
		MaxConcurrent:    cfg.Sandbox.MaxConcurrent,
	}

	switch cfg.Sandbox.Mode {
	case config.SandboxModeDisabled:
		log.Warnf("sandbox disabled, code deliveries are not executed")
		return nil, noop, nil
	case config.SandboxModeWasi:
		runner, err := sandbox.NewWasiRunner(ctx, sandboxCfg, sandbox.WasiConfig{
			ModulePath: cfg.Sandbox.WasmModulePath,
			StdlibDir:  cfg.Sandbox.WasmStdlibDir,
		}, log)
		if err != nil {
			return nil, noop, err
		}
		return runner, func() { _ = runner.Close(context.Background()) }, nil
	}

	return sandbox.NewProcessRunner(sandboxCfg, log), noop, nil
}

func newMappingStore(cfg *config.Config, log interfaces.ILogger) (mappings.Store, error) {
	switch cfg.Bridge.Store {
	case config.BridgeStoreRedis:
		log.Infof("using redis mapping store, key %s", cfg.Bridge.RedisKey)
		return mappings.NewRedisStoreFromURL(cfg.Bridge.RedisURL, cfg.Bridge.RedisKey)
	case config.BridgeStoreMemory:
		log.Warnf("using in-memory mapping store, mappings are lost on restart")
		return mappings.NewMemoryStore(), nil
	}
	log.Infof("using file mapping store %s", cfg.Bridge.MappingsFile)
	return mappings.NewFileStore(cfg.Bridge.MappingsFile, log), nil
}
