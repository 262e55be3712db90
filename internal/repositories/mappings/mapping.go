package mappings

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSynced  Status = "synced"
)

var (
	ErrNotFound = errors.New("mapping not found")
	ErrStore    = errors.New("mapping store error")
)

// Mapping links an attestation account to the seller and escrow that settle it
type Mapping struct {
	SourceID  string     `json:"solana_attestation"`
	Seller    string     `json:"arc_seller"`
	Escrow    *string    `json:"arc_escrow"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	SyncedAt  *time.Time `json:"synced_at"`
}

func NewMapping(sourceID string, seller string, escrow string, now time.Time) *Mapping {
	m := &Mapping{
		SourceID:  sourceID,
		Seller:    strings.ToLower(seller),
		Status:    StatusPending,
		CreatedAt: now.UTC(),
	}
	if escrow != "" {
		lowered := strings.ToLower(escrow)
		m.Escrow = &lowered
	}
	return m
}

func (m *Mapping) EscrowAddress() string {
	if m.Escrow == nil {
		return ""
	}
	return *m.Escrow
}

func (m *Mapping) MarkSynced(now time.Time) {
	t := now.UTC()
	m.Status = StatusSynced
	m.SyncedAt = &t
}

func (m *Mapping) Copy() *Mapping {
	c := *m
	if m.Escrow != nil {
		escrow := *m.Escrow
		c.Escrow = &escrow
	}
	if m.SyncedAt != nil {
		syncedAt := *m.SyncedAt
		c.SyncedAt = &syncedAt
	}
	return &c
}

// Store persists mappings. Put replaces the mapping with the same SourceID
type Store interface {
	LoadAll(ctx context.Context) ([]*Mapping, error)
	Put(ctx context.Context, m *Mapping) error
}
