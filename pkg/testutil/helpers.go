// Package testutil provides common utility functions for testing.
package testutil

import (
	"strings"

	"github.com/iwvelando/dealership-quote/pkg/pricing"
)

// FixtureFees returns the registration fee row used across tests.
func FixtureFees() pricing.RegistrationFees {
	return pricing.RegistrationFees{
		LicensePlate:       20000000,
		RoadFee:            1560000,
		Insurance:          480700,
		ServiceFee:         5000000,
		InspectionStandard: 340000,
		InspectionPremium:  560000,
	}
}

// FixturePrices returns a small catalog: a priced two-variant model and an
// unpriced one.
func FixturePrices() []pricing.VehiclePrice {
	return []pricing.VehiclePrice{
		{CarModel: "VF 8", Variant: pricing.VariantStandard, BasePrice: 699000000, Promotion: 20000000, PriceAvailable: true},
		{CarModel: "VF 8", Variant: pricing.VariantPremium, BasePrice: 759000000, PriceAvailable: true},
		{CarModel: "VF 9", Variant: pricing.VariantFlagship, PriceAvailable: false},
	}
}

// FindVariant finds the row of model and variant in rows.
// Returns a pointer to the row if found, nil otherwise.
func FindVariant(rows []pricing.VehiclePrice, model string, variant pricing.Variant) *pricing.VehiclePrice {
	for i := range rows {
		if strings.EqualFold(rows[i].CarModel, model) && rows[i].Variant == variant {
			return &rows[i]
		}
	}
	return nil
}
