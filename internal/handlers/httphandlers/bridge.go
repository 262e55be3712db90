package httphandlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hale-labs/hale-oracle/internal/attestation"
	"github.com/hale-labs/hale-oracle/internal/bridge"
	"github.com/hale-labs/hale-oracle/internal/lib"
)

const monitorStopTimeout = 30 * time.Second

func (h *HTTPHandler) BridgeStatus(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.bridge.Status(ctx.Request.Context()))
}

func (h *HTTPHandler) GetMappings(ctx *gin.Context) {
	list := h.bridge.Mappings()
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	ctx.JSON(http.StatusOK, list)
}

func (h *HTTPHandler) RegisterMapping(ctx *gin.Context) {
	var req RegisterMappingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.bridge.RegisterMapping(ctx.Request.Context(), req.SourceID, req.Seller, req.Escrow)
	if errors.Is(err, bridge.ErrInvalidMapping) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Errorf("failed to register mapping %s: %s", req.SourceID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, m)
}

func (h *HTTPHandler) SyncAttestation(ctx *gin.Context) {
	id := ctx.Param("id")
	force, _ := strconv.ParseBool(ctx.Query("force"))

	synced, err := h.bridge.SyncOne(ctx.Request.Context(), id, force)
	switch {
	case errors.Is(err, bridge.ErrMappingNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		ctx.JSON(http.StatusBadGateway, SyncResponse{ID: id, Synced: false, Error: err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, SyncResponse{ID: id, Synced: synced})
}

func (h *HTTPHandler) InjectMockAttestation(ctx *gin.Context) {
	var req MockAttestationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := attestation.ParseStatus(req.Status)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec := h.bridge.InjectMockAttestation(ctx.Param("id"), status)
	ctx.JSON(http.StatusOK, MockAttestationResponse{
		ID:             ctx.Param("id"),
		Status:         rec.Status.String(),
		IntentHash:     rec.IntentHashHex(),
		ReadyForBridge: attestation.IsReadyForBridge(rec),
		Verdict:        attestation.ToVerdict(rec),
	})
}

func (h *HTTPHandler) StartMonitor(ctx *gin.Context) {
	err := h.monitor.Start()
	switch {
	case errors.Is(err, lib.ErrTaskRunning):
		ctx.JSON(http.StatusConflict, MonitorStateResponse{Running: true, Error: "monitor is already running"})
		return
	case err != nil:
		ctx.JSON(http.StatusServiceUnavailable, MonitorStateResponse{Running: false, Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, MonitorStateResponse{Running: true})
}

func (h *HTTPHandler) StopMonitor(ctx *gin.Context) {
	stopCtx, cancel := context.WithTimeout(ctx.Request.Context(), monitorStopTimeout)
	defer cancel()

	if err := h.monitor.Stop(stopCtx); err != nil {
		ctx.JSON(http.StatusGatewayTimeout, MonitorStateResponse{Running: h.monitor.IsRunning(), Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, MonitorStateResponse{Running: false})
}
