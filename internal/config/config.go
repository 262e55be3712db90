package config

import (
	"strings"
	"time"

	"github.com/hale-labs/hale-oracle/internal/bridge"
	"github.com/hale-labs/hale-oracle/internal/judge"
	"github.com/hale-labs/hale-oracle/internal/repositories/mappings"
	"github.com/hale-labs/hale-oracle/internal/repositories/solana"
	"github.com/hale-labs/hale-oracle/internal/sandbox"
	"github.com/hale-labs/hale-oracle/internal/settlement"
)

const (
	SandboxModeProcess  = "process"
	SandboxModeWasi     = "wasi"
	SandboxModeDisabled = "disabled"

	BridgeStoreFile   = "file"
	BridgeStoreRedis  = "redis"
	BridgeStoreMemory = "memory"
)

// Validation tags described here: https://pkg.go.dev/github.com/go-playground/validator/v10
type Config struct {
	Environment string `env:"ENVIRONMENT" flag:"environment"`
	Chain       struct {
		RPCURL                string        `env:"ARC_RPC_URL"                flag:"arc-rpc-url"                validate:"omitempty,url"                    desc:"destination chain json-rpc endpoint, settlement is disabled when empty"`
		PrivateKey            string        `env:"ORACLE_PRIVATE_KEY"         flag:"oracle-private-key"         validate:"omitempty,hexadecimal,len=64"`
		Mnemonic              string        `env:"ORACLE_MNEMONIC"            flag:"oracle-mnemonic"                                                        desc:"used when no private key is set"`
		EscrowAddress         string        `env:"ESCROW_CONTRACT_ADDRESS"    flag:"escrow-contract-address"    validate:"omitempty,eth_addr"               desc:"default escrow when neither the request nor the bridge mapping names one"`
		EscrowABIPath         string        `env:"ESCROW_ABI_PATH"            flag:"escrow-abi-path"            validate:"omitempty,file"                   desc:"escrow abi json or compiler artifact, built-in release/refund abi when empty"`
		SkipTxWait            bool          `env:"SKIP_TX_WAIT"               flag:"skip-tx-wait"                                                           desc:"return the transaction hash without waiting for a receipt"`
		ReleaseReceiptTimeout time.Duration `env:"TX_RELEASE_RECEIPT_TIMEOUT" flag:"tx-release-receipt-timeout"`
		RefundReceiptTimeout  time.Duration `env:"TX_REFUND_RECEIPT_TIMEOUT"  flag:"tx-refund-receipt-timeout"`
		DefaultGasLimit       uint64        `env:"TX_DEFAULT_GAS_LIMIT"       flag:"tx-default-gas-limit"                                                   desc:"gas limit used when estimation fails"`
	}
	Judge struct {
		GeminiAPIKey     string        `env:"GEMINI_API_KEY"           flag:"gemini-api-key"`
		GeminiModel      string        `env:"GEMINI_MODEL"             flag:"gemini-model"`
		Mock             bool          `env:"MOCK_GEMINI"              flag:"mock-gemini"              desc:"replace the ai judge with a mock that always passes"`
		MockDelay        time.Duration `env:"MOCK_GEMINI_DELAY"        flag:"mock-gemini-delay"`
		RPM              int           `env:"JUDGE_RPM"                flag:"judge-rpm"                validate:"omitempty,gte=1"      desc:"max judge requests per minute"`
		Timeout          time.Duration `env:"JUDGE_TIMEOUT"            flag:"judge-timeout"`
		SystemPromptPath string        `env:"JUDGE_SYSTEM_PROMPT_PATH" flag:"judge-system-prompt-path" validate:"omitempty,file"`
		QuotaPolicy      string        `env:"JUDGE_QUOTA_POLICY"       flag:"judge-quota-policy"       validate:"omitempty,oneof=pass_with_flag fallback" desc:"verdict used when the judge is rate limited"`
	}
	Sandbox struct {
		Mode           string        `env:"SANDBOX_MODE"             flag:"sandbox-mode"             validate:"omitempty,oneof=process wasi disabled"`
		Interpreter    string        `env:"SANDBOX_INTERPRETER"      flag:"sandbox-interpreter"`
		CPULimit       time.Duration `env:"SANDBOX_CPU_LIMIT"        flag:"sandbox-cpu-limit"`
		WallTimeout    time.Duration `env:"SANDBOX_WALL_TIMEOUT"     flag:"sandbox-wall-timeout"                                     desc:"raised above the cpu limit when set lower"`
		MemoryLimitMB  uint64        `env:"SANDBOX_MEMORY_LIMIT_MB"  flag:"sandbox-memory-limit-mb"`
		OutputLimit    int           `env:"SANDBOX_OUTPUT_LIMIT"     flag:"sandbox-output-limit"     validate:"omitempty,gte=1"       desc:"bytes kept from each output stream"`
		MaxConcurrent  int           `env:"SANDBOX_MAX_CONCURRENT"   flag:"sandbox-max-concurrent"   validate:"omitempty,gte=1"`
		Namespaces     bool          `env:"SANDBOX_NAMESPACES"       flag:"sandbox-namespaces"                                        desc:"run the child in new user and network namespaces (linux)"`
		WasmModulePath string        `env:"SANDBOX_WASM_MODULE"      flag:"sandbox-wasm-module"      validate:"required_if=Mode wasi,omitempty,file"`
		WasmStdlibDir  string        `env:"SANDBOX_WASM_STDLIB_DIR"  flag:"sandbox-wasm-stdlib-dir"  validate:"omitempty,dir"`
	}
	Review struct {
		QueueDir string `env:"REVIEW_QUEUE_DIR" flag:"review-queue-dir" desc:"directory for borderline verdicts awaiting manual audit"`
	}
	Bridge struct {
		Enable       bool          `env:"BRIDGE_ENABLE"         flag:"bridge-enable"         desc:"run the attestation monitor loop"`
		SolanaRPCURL string        `env:"SOLANA_RPC_URL"        flag:"solana-rpc-url"        validate:"omitempty,url"`
		PollInterval time.Duration `env:"BRIDGE_POLL_INTERVAL"  flag:"bridge-poll-interval"`
		Store        string        `env:"BRIDGE_STORE"          flag:"bridge-store"          validate:"omitempty,oneof=file redis memory"`
		MappingsFile string        `env:"BRIDGE_MAPPINGS_FILE"  flag:"bridge-mappings-file"`
		RedisURL     string        `env:"REDIS_URL"             flag:"redis-url"             validate:"required_if=Store redis,omitempty,url"`
		RedisKey     string        `env:"BRIDGE_REDIS_KEY"      flag:"bridge-redis-key"`
	}
	Log struct {
		Color           bool   `env:"LOG_COLOR"            flag:"log-color"`
		FolderPath      string `env:"LOG_FOLDER_PATH"      flag:"log-folder-path"      desc:"enables file logging and sets the folder path"`
		IsProd          bool   `env:"LOG_IS_PROD"          flag:"log-is-prod"          validate:""                     desc:"affects the format of the log output"`
		JSON            bool   `env:"LOG_JSON"             flag:"log-json"`
		LevelApp        string `env:"LOG_LEVEL_APP"        flag:"log-level-app"        validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelJudge      string `env:"LOG_LEVEL_JUDGE"      flag:"log-level-judge"      validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelSandbox    string `env:"LOG_LEVEL_SANDBOX"    flag:"log-level-sandbox"    validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelSettlement string `env:"LOG_LEVEL_SETTLEMENT" flag:"log-level-settlement" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelBridge     string `env:"LOG_LEVEL_BRIDGE"     flag:"log-level-bridge"     validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelHTTP       string `env:"LOG_LEVEL_HTTP"       flag:"log-level-http"       validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	}
	Web struct {
		Address   string `env:"WEB_ADDRESS"    flag:"web-address"    validate:"required,hostname_port" desc:"http server address host:port"`
		PublicUrl string `env:"WEB_PUBLIC_URL" flag:"web-public-url" validate:"omitempty,url"          desc:"public url of the oracle, falls back to web-address if empty"`
	}
}

func (cfg *Config) SetDefaults() {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Chain

	cfg.Chain.PrivateKey = strings.TrimPrefix(cfg.Chain.PrivateKey, "0x")
	if cfg.Chain.ReleaseReceiptTimeout == 0 {
		cfg.Chain.ReleaseReceiptTimeout = settlement.DefaultReleaseReceiptTimeout
	}
	if cfg.Chain.RefundReceiptTimeout == 0 {
		cfg.Chain.RefundReceiptTimeout = settlement.DefaultRefundReceiptTimeout
	}
	if cfg.Chain.DefaultGasLimit == 0 {
		cfg.Chain.DefaultGasLimit = settlement.DefaultGasLimit
	}

	// Judge

	if cfg.Judge.GeminiModel == "" {
		cfg.Judge.GeminiModel = judge.DefaultGeminiModel
	}
	if cfg.Judge.RPM == 0 {
		cfg.Judge.RPM = judge.DefaultJudgeRPM
	}
	if cfg.Judge.Timeout == 0 {
		cfg.Judge.Timeout = 60 * time.Second
	}
	if cfg.Judge.QuotaPolicy == "" {
		cfg.Judge.QuotaPolicy = string(judge.QuotaPolicyPassWithFlag)
	}

	// Sandbox

	if cfg.Sandbox.Mode == "" {
		cfg.Sandbox.Mode = SandboxModeProcess
	}
	if cfg.Sandbox.Interpreter == "" {
		cfg.Sandbox.Interpreter = "python3"
	}
	if cfg.Sandbox.CPULimit == 0 {
		cfg.Sandbox.CPULimit = sandbox.DefaultCPULimit
	}
	if cfg.Sandbox.WallTimeout <= cfg.Sandbox.CPULimit {
		cfg.Sandbox.WallTimeout = cfg.Sandbox.CPULimit + 2*time.Second
	}
	if cfg.Sandbox.MemoryLimitMB == 0 {
		cfg.Sandbox.MemoryLimitMB = sandbox.DefaultMemoryLimit >> 20
	}
	if cfg.Sandbox.OutputLimit == 0 {
		cfg.Sandbox.OutputLimit = sandbox.DefaultOutputLimit
	}
	if cfg.Sandbox.MaxConcurrent == 0 {
		cfg.Sandbox.MaxConcurrent = sandbox.DefaultMaxConcurrent
	}

	// Review

	if cfg.Review.QueueDir == "" {
		cfg.Review.QueueDir = "reviews"
	}

	// Bridge

	if cfg.Bridge.SolanaRPCURL == "" {
		cfg.Bridge.SolanaRPCURL = solana.DefaultRPCURL
	}
	if cfg.Bridge.PollInterval == 0 {
		cfg.Bridge.PollInterval = bridge.DefaultPollInterval
	}
	if cfg.Bridge.Store == "" {
		cfg.Bridge.Store = BridgeStoreFile
	}
	if cfg.Bridge.MappingsFile == "" {
		cfg.Bridge.MappingsFile = mappings.DefaultFilePath
	}
	if cfg.Bridge.RedisKey == "" {
		cfg.Bridge.RedisKey = mappings.DefaultRedisKey
	}

	// Log

	if cfg.Log.LevelApp == "" {
		cfg.Log.LevelApp = "debug"
	}
	if cfg.Log.LevelJudge == "" {
		cfg.Log.LevelJudge = "info"
	}
	if cfg.Log.LevelSandbox == "" {
		cfg.Log.LevelSandbox = "info"
	}
	if cfg.Log.LevelSettlement == "" {
		cfg.Log.LevelSettlement = "debug"
	}
	if cfg.Log.LevelBridge == "" {
		cfg.Log.LevelBridge = "info"
	}
	if cfg.Log.LevelHTTP == "" {
		cfg.Log.LevelHTTP = "info"
	}

	// Web

	if cfg.Web.Address == "" {
		cfg.Web.Address = "0.0.0.0:5001"
	}
	if cfg.Web.PublicUrl == "" {
		cfg.Web.PublicUrl = "http://" + cfg.Web.Address
	}
}

// GetSanitized returns a copy of the config with sensitive data removed
// explicitly adding each field here to avoid accidentally leaking sensitive data
func (cfg *Config) GetSanitized() interface{} {
	publicCfg := Config{}

	publicCfg.Environment = cfg.Environment

	publicCfg.Chain.EscrowAddress = cfg.Chain.EscrowAddress
	publicCfg.Chain.EscrowABIPath = cfg.Chain.EscrowABIPath
	publicCfg.Chain.SkipTxWait = cfg.Chain.SkipTxWait
	publicCfg.Chain.ReleaseReceiptTimeout = cfg.Chain.ReleaseReceiptTimeout
	publicCfg.Chain.RefundReceiptTimeout = cfg.Chain.RefundReceiptTimeout
	publicCfg.Chain.DefaultGasLimit = cfg.Chain.DefaultGasLimit

	publicCfg.Judge.GeminiModel = cfg.Judge.GeminiModel
	publicCfg.Judge.Mock = cfg.Judge.Mock
	publicCfg.Judge.RPM = cfg.Judge.RPM
	publicCfg.Judge.Timeout = cfg.Judge.Timeout
	publicCfg.Judge.QuotaPolicy = cfg.Judge.QuotaPolicy

	publicCfg.Sandbox = cfg.Sandbox

	publicCfg.Review.QueueDir = cfg.Review.QueueDir

	publicCfg.Bridge.Enable = cfg.Bridge.Enable
	publicCfg.Bridge.PollInterval = cfg.Bridge.PollInterval
	publicCfg.Bridge.Store = cfg.Bridge.Store
	publicCfg.Bridge.MappingsFile = cfg.Bridge.MappingsFile
	publicCfg.Bridge.RedisKey = cfg.Bridge.RedisKey

	publicCfg.Log = cfg.Log

	publicCfg.Web.Address = cfg.Web.Address
	publicCfg.Web.PublicUrl = cfg.Web.PublicUrl

	return publicCfg
}
