package httphandlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hale-labs/hale-oracle/internal/attestation"
	"github.com/hale-labs/hale-oracle/internal/bridge"
	"github.com/hale-labs/hale-oracle/internal/interfaces"
	"github.com/hale-labs/hale-oracle/internal/oracle"
	"github.com/hale-labs/hale-oracle/internal/pipeline"
	"github.com/hale-labs/hale-oracle/internal/repositories/mappings"
	"github.com/hale-labs/hale-oracle/internal/verdict"
)

const HeaderRequestID = "X-Request-ID"

type Oracle interface {
	ProcessDelivery(ctx context.Context, claim *verdict.Claim, seller string, contractAddress string) (*oracle.DeliveryResult, error)
	Stats() oracle.Stats
}

type Bridge interface {
	RegisterMapping(ctx context.Context, sourceID string, seller string, escrow string) (*mappings.Mapping, error)
	Mappings() []*mappings.Mapping
	SyncOne(ctx context.Context, sourceID string, force bool) (bool, error)
	InjectMockAttestation(sourceID string, status attestation.Status) *attestation.Record
	Status(ctx context.Context) bridge.Status
}

type MonitorControl interface {
	Start() error
	Stop(ctx context.Context) error
	IsRunning() bool
}

type ReviewLister interface {
	Reviews(ctx context.Context) ([]*pipeline.Review, error)
}

type Sanitizable interface {
	GetSanitized() interface{}
}

// ServiceInfo is static information reported by the health endpoint
type ServiceInfo struct {
	Mode          string `json:"mode"`
	PrimaryJudge  string `json:"primary_judge"`
	SandboxMode   string `json:"sandbox_mode"`
	OracleAddress string `json:"oracle_address"`
}

type HTTPHandler struct {
	oracle  Oracle
	bridge  Bridge
	monitor MonitorControl
	reviews ReviewLister
	config  Sanitizable
	info    ServiceInfo
	log     interfaces.ILogger
}

func NewHTTPHandler(oracle Oracle, bridge Bridge, monitor MonitorControl, reviews ReviewLister, config Sanitizable, info ServiceInfo, log interfaces.ILogger) *gin.Engine {
	handl := &HTTPHandler{
		oracle:  oracle,
		bridge:  bridge,
		monitor: monitor,
		reviews: reviews,
		config:  config,
		info:    info,
		log:     log,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handl.RequestLogger)

	api := r.Group("/api")
	api.GET("/health", handl.HealthCheck)
	api.POST("/verify", handl.Verify)
	api.GET("/monitor", handl.Monitor)
	api.GET("/monitor/:address", handl.Monitor)
	api.GET("/reviews", handl.GetReviews)

	api.GET("/bridge/status", handl.BridgeStatus)
	api.GET("/bridge/mappings", handl.GetMappings)
	api.POST("/bridge/mappings", handl.RegisterMapping)
	api.POST("/bridge/sync/:id", handl.SyncAttestation)
	api.POST("/bridge/mock/:id", handl.InjectMockAttestation)
	api.POST("/bridge/monitor/start", handl.StartMonitor)
	api.POST("/bridge/monitor/stop", handl.StopMonitor)

	r.GET("/config", handl.GetConfig)

	err := r.SetTrustedProxies(nil)
	if err != nil {
		panic(err)
	}

	return r
}

// RequestLogger tags every request with an id and logs its outcome
func (h *HTTPHandler) RequestLogger(ctx *gin.Context) {
	requestID := ctx.GetHeader(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx.Header(HeaderRequestID, requestID)

	start := time.Now()
	ctx.Next()

	h.log.Debugf("%s %s %d %s id=%s", ctx.Request.Method, ctx.Request.URL.Path, ctx.Writer.Status(), time.Since(start), requestID)
}
