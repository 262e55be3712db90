package httphandlers

import (
	"github.com/hale-labs/hale-oracle/internal/oracle"
	"github.com/hale-labs/hale-oracle/internal/verdict"
)

type VerifyRequest struct {
	TransactionID      string   `json:"transaction_id"`
	ContractTerms      string   `json:"contract_terms"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	DeliveryContent    string   `json:"delivery_content"  binding:"required"`
	SellerAddress      string   `json:"seller_address"    binding:"omitempty,eth_addr"`
	ContractAddress    string   `json:"contract_address"  binding:"omitempty,eth_addr"`
	EscrowAddress      string   `json:"escrow_address"    binding:"omitempty,eth_addr"`
}

type RegisterMappingRequest struct {
	SourceID string `json:"solana_attestation" binding:"required"`
	Seller   string `json:"arc_seller"         binding:"required,eth_addr"`
	Escrow   string `json:"arc_escrow"         binding:"omitempty,eth_addr"`
}

type MockAttestationRequest struct {
	Status string `json:"status" binding:"required"`
}

type MockAttestationResponse struct {
	ID             string           `json:"solana_attestation"`
	Status         string           `json:"status"`
	IntentHash     string           `json:"intent_hash"`
	ReadyForBridge bool             `json:"ready_for_bridge"`
	Verdict        *verdict.Verdict `json:"verdict"`
}

type SyncResponse struct {
	ID     string `json:"solana_attestation"`
	Synced bool   `json:"synced"`
	Error  string `json:"error,omitempty"`
}

type HealthResponse struct {
	ServiceInfo
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

type MonitorResponse struct {
	oracle.Stats
	ContractAddress string `json:"contractAddress,omitempty"`
}

type ConfigResponse struct {
	Version string      `json:"version"`
	Config  interface{} `json:"config"`
}

type MonitorStateResponse struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}
