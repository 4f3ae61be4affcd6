package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/iwvelando/dealership-quote/pkg/pricing"
)

// MemoryStore is an in-process Store used when no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	models []string
	prices map[string][]pricing.VehiclePrice
	fees   *pricing.RegistrationFees
	leads  []Lead
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prices: make(map[string][]pricing.VehiclePrice)}
}

func modelKey(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}

// PricesByModel returns a copy of the model's rows in insertion order, or
// ErrNotFound.
func (s *MemoryStore) PricesByModel(_ context.Context, model string) ([]pricing.VehiclePrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.prices[modelKey(model)]
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	out := make([]pricing.VehiclePrice, len(rows))
	copy(out, rows)
	return out, nil
}

// UpsertPrice validates price and replaces the row with the same model and
// variant, or appends it.
func (s *MemoryStore) UpsertPrice(_ context.Context, price pricing.VehiclePrice) error {
	if err := price.Validate(); err != nil {
		return err
	}
	price.CarModel = strings.TrimSpace(price.CarModel)

	s.mu.Lock()
	defer s.mu.Unlock()

	key := modelKey(price.CarModel)
	rows, ok := s.prices[key]
	if !ok {
		s.models = append(s.models, price.CarModel)
	}
	for i := range rows {
		if rows[i].Variant == price.Variant {
			rows[i] = price
			return nil
		}
	}
	s.prices[key] = append(rows, price)
	return nil
}

// DeletePrice removes one variant row. It returns ErrNotFound when no such
// row exists.
func (s *MemoryStore) DeletePrice(_ context.Context, model string, variant pricing.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := modelKey(model)
	rows := s.prices[key]
	for i := range rows {
		if rows[i].Variant != variant {
			continue
		}
		rows = append(rows[:i:i], rows[i+1:]...)
		if len(rows) == 0 {
			delete(s.prices, key)
			s.removeModel(key)
		} else {
			s.prices[key] = rows
		}
		return nil
	}
	return ErrNotFound
}

func (s *MemoryStore) removeModel(key string) {
	for i, m := range s.models {
		if modelKey(m) == key {
			s.models = append(s.models[:i:i], s.models[i+1:]...)
			return
		}
	}
}

// ListModels returns model display names in first-insertion order.
func (s *MemoryStore) ListModels(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.models))
	copy(out, s.models)
	return out, nil
}

// Fees returns the saved fee row, or ErrNotFound.
func (s *MemoryStore) Fees(_ context.Context) (pricing.RegistrationFees, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.fees == nil {
		return pricing.RegistrationFees{}, ErrNotFound
	}
	return *s.fees, nil
}

// SaveFees validates and replaces the fee row.
func (s *MemoryStore) SaveFees(_ context.Context, fees pricing.RegistrationFees) error {
	if err := fees.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fees = &fees
	return nil
}

// SaveLead appends a lead.
func (s *MemoryStore) SaveLead(_ context.Context, lead Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, lead)
	return nil
}

// ListLeads returns up to limit leads, newest first. A limit of 0 returns all.
func (s *MemoryStore) ListLeads(_ context.Context, limit int) ([]Lead, error) {
	s.mu.RLock()
	out := make([]Lead, 0, len(s.leads))
	for i := len(s.leads) - 1; i >= 0; i-- {
		out = append(out, s.leads[i])
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
