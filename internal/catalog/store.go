// Package catalog stores the vehicle price table, the global registration fee
// row and captured leads.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/dealership-quote/pkg/pricing"
)

// ErrNotFound is returned when a requested model, price row or fee row does not exist.
var ErrNotFound = errors.New("not found")

// LeadKind separates quote requests from test-drive bookings.
type LeadKind string

const (
	LeadQuote     LeadKind = "quote"
	LeadTestDrive LeadKind = "test_drive"
)

// Valid reports whether k is a known lead kind.
func (k LeadKind) Valid() bool {
	return k == LeadQuote || k == LeadTestDrive
}

// Lead is a contact request captured from the public site.
type Lead struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Kind          LeadKind  `gorm:"size:32;not null;index" json:"kind"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Phone         string    `gorm:"size:32;not null" json:"phone"`
	Email         string    `gorm:"size:255" json:"email,omitempty"`
	CarModel      string    `gorm:"size:128" json:"carModel,omitempty"`
	Variant       string    `gorm:"size:32" json:"variant,omitempty"`
	PreferredDate string    `gorm:"size:10" json:"preferredDate,omitempty"`
	Note          string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt     time.Time `gorm:"not null;index" json:"createdAt"`
}

// TableName pins the leads table name.
func (Lead) TableName() string { return "leads" }

// Store is the persistence boundary of the quote service.
type Store interface {
	// PricesByModel returns the rows of one model in insertion order, or
	// ErrNotFound when the model has none.
	PricesByModel(ctx context.Context, model string) ([]pricing.VehiclePrice, error)
	UpsertPrice(ctx context.Context, price pricing.VehiclePrice) error
	DeletePrice(ctx context.Context, model string, variant pricing.Variant) error
	ListModels(ctx context.Context) ([]string, error)

	// Fees returns ErrNotFound until a fee row has been saved.
	Fees(ctx context.Context) (pricing.RegistrationFees, error)
	SaveFees(ctx context.Context, fees pricing.RegistrationFees) error

	SaveLead(ctx context.Context, lead Lead) error
	// ListLeads returns the newest leads first.
	ListLeads(ctx context.Context, limit int) ([]Lead, error)
}
