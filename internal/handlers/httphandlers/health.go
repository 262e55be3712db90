package httphandlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hale-labs/hale-oracle/internal/config"
)

func (h *HTTPHandler) HealthCheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Version:     config.BuildVersion,
		ServiceInfo: h.info,
		Timestamp:   time.Now().Unix(),
	})
}

func (h *HTTPHandler) GetConfig(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, ConfigResponse{
		Version: config.BuildVersion,
		Config:  h.config.GetSanitized(),
	})
}

func (h *HTTPHandler) Monitor(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, MonitorResponse{
		Stats:           h.oracle.Stats(),
		ContractAddress: ctx.Param("address"),
	})
}

func (h *HTTPHandler) GetReviews(ctx *gin.Context) {
	reviews, err := h.reviews.Reviews(ctx.Request.Context())
	if err != nil {
		h.log.Errorf("failed to list reviews: %s", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, reviews)
}
