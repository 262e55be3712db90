package httphandlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hale-labs/hale-oracle/internal/verdict"
)

func (h *HTTPHandler) Verify(ctx *gin.Context) {
	var req VerifyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.TransactionID == "" {
		req.TransactionID = "tx_" + uuid.NewString()
	}

	claim := &verdict.Claim{
		TransactionID:      req.TransactionID,
		Terms:              req.ContractTerms,
		AcceptanceCriteria: req.AcceptanceCriteria,
		DeliveryContent:    req.DeliveryContent,
		EscrowAddress:      req.EscrowAddress,
	}

	res, err := h.oracle.ProcessDelivery(ctx.Request.Context(), claim, req.SellerAddress, req.ContractAddress)
	if errors.Is(err, verdict.ErrInvalidClaim) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Errorf("verification of %s failed: %s", claim.TransactionID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, res)
}
