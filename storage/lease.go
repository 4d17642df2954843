package storage

import (
	"context"
	"time"
)

// LeaseStore keeps named leases so that one of several spectators sharing
// an archive can claim a role, such as running maintenance. The PostgreSQL
// stores and MemoryStore implement it.
type LeaseStore interface {
	// LeaseAcquire takes the lease if it is free or expired.
	LeaseAcquire(ctx context.Context, params *LeaseParams) (bool, error)

	// LeaseRenew extends the lease if params.HolderID still holds it.
	LeaseRenew(ctx context.Context, params *LeaseParams) (bool, error)

	// LeaseRelease drops the lease if holderID holds it.
	LeaseRelease(ctx context.Context, name, holderID string) error
}

// LeaseParams names a lease, its claimant and how long the claim lasts.
type LeaseParams struct {
	Name     string
	HolderID string
	TTL      time.Duration
}

// Lease is a held lease.
type Lease struct {
	Name       string    `json:"name"`
	HolderID   string    `json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
