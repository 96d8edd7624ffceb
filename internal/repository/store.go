// Package repository is the persistence layer. Every mutation that protects
// a ledger invariant is a single UPDATE whose WHERE clause carries the guard;
// callers learn whether the guard held from ErrGuardFailed or a bool result.
package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories and runs work inside one transaction
type Store interface {
	Orders() OrderRepository
	Partners() PartnerRepository
	Payouts() PayoutRepository
	Fraud() FraudRepository
	Settings() SettingsRepository
	Products() ProductRepository
	WebhookEvents() WebhookEventRepository

	// Transaction runs fn against a Store bound to a single DB transaction.
	// Returning an error rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore returns a gorm-backed Store
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Orders() OrderRepository { return &orderRepoImpl{db: s.db} }
func (s *gormStore) Partners() PartnerRepository { return &partnerRepoImpl{db: s.db} }
func (s *gormStore) Payouts() PayoutRepository { return &payoutRepoImpl{db: s.db} }
func (s *gormStore) Fraud() FraudRepository { return &fraudRepoImpl{db: s.db} }
func (s *gormStore) Settings() SettingsRepository { return &settingsRepoImpl{db: s.db} }
func (s *gormStore) Products() ProductRepository { return &productRepoImpl{db: s.db} }
func (s *gormStore) WebhookEvents() WebhookEventRepository { return &webhookEventRepoImpl{db: s.db} }

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// Page is a 1-based pagination request
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page into sane bounds
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 || p.Size > 100 {
		p.Size = 20
	}
	return p
}

// Offset is the row offset for the page
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Size
}
