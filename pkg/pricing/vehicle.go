// Package pricing computes registration fees, drive-away prices and the
// headline price of a car model.
package pricing

import (
	"fmt"
	"strings"
)

// Variant is a trim tier of a car model.
type Variant string

const (
	VariantStandard Variant = "standard"
	VariantPremium  Variant = "premium"
	VariantFlagship Variant = "flagship"
)

// Variants returns the trim tiers in display order.
func Variants() []Variant {
	return []Variant{VariantStandard, VariantPremium, VariantFlagship}
}

// ParseVariant accepts a trim name in any letter case.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Variants() {
		if v == known {
			return v, nil
		}
	}
	return "", &ValidationError{Field: "variant", Reason: fmt.Sprintf("unknown variant %q", s)}
}

// Valid reports whether v is one of the known tiers.
func (v Variant) Valid() bool {
	_, err := ParseVariant(string(v))
	return err == nil
}

// UsesPremiumInspection reports whether the premium inspection fee applies.
func (v Variant) UsesPremiumInspection() bool {
	return v != VariantStandard
}

// ValidationError reports a price or fee row that breaks an invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// VehiclePrice is one (car model, variant) price row.
type VehiclePrice struct {
	CarModel       string  `json:"carModel"`
	Variant        Variant `json:"variant"`
	BasePrice      int64   `json:"basePrice"`
	Promotion      int64   `json:"promotion"`
	PriceAvailable bool    `json:"priceAvailable"`
}

// NetPrice is the base price less the promotion.
func (vp VehiclePrice) NetPrice() int64 {
	return vp.BasePrice - vp.Promotion
}

// Validate checks the row before it is stored.
func (vp VehiclePrice) Validate() error {
	if strings.TrimSpace(vp.CarModel) == "" {
		return &ValidationError{Field: "carModel", Reason: "must not be empty"}
	}
	if !vp.Variant.Valid() {
		return &ValidationError{Field: "variant", Reason: fmt.Sprintf("unknown variant %q", vp.Variant)}
	}
	if vp.BasePrice < 0 {
		return &ValidationError{Field: "basePrice", Reason: "must not be negative"}
	}
	if vp.Promotion < 0 {
		return &ValidationError{Field: "promotion", Reason: "must not be negative"}
	}
	if vp.Promotion > vp.BasePrice {
		return &ValidationError{Field: "promotion", Reason: "must not exceed basePrice"}
	}
	if vp.PriceAvailable && vp.BasePrice == 0 {
		return &ValidationError{Field: "basePrice", Reason: "must be set when the price is available"}
	}
	return nil
}

// RegistrationFees is the global fee row applied to every model.
type RegistrationFees struct {
	LicensePlate       int64 `json:"licensePlate"`
	RoadFee            int64 `json:"roadFee"`
	Insurance          int64 `json:"insurance"`
	ServiceFee         int64 `json:"serviceFee"`
	InspectionStandard int64 `json:"inspectionStandard"`
	InspectionPremium  int64 `json:"inspectionPremium"`
}

// Validate rejects negative line items.
func (f RegistrationFees) Validate() error {
	items := []struct {
		field string
		value int64
	}{
		{"licensePlate", f.LicensePlate},
		{"roadFee", f.RoadFee},
		{"insurance", f.Insurance},
		{"serviceFee", f.ServiceFee},
		{"inspectionStandard", f.InspectionStandard},
		{"inspectionPremium", f.InspectionPremium},
	}
	for _, item := range items {
		if item.value < 0 {
			return &ValidationError{Field: item.field, Reason: "must not be negative"}
		}
	}
	return nil
}
