package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/iwvelando/dealership-quote/pkg/pricing"
	"go.uber.org/zap"
)

// Seed loads the configured price rows and fee row into store. Each part is
// only written when the store has none yet, so admin edits survive a restart.
func Seed(ctx context.Context, store Store, prices []pricing.VehiclePrice, fees pricing.RegistrationFees, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	models, err := store.ListModels(ctx)
	if err != nil {
		return err
	}
	seeded := 0
	if len(models) == 0 {
		for _, price := range prices {
			if err := store.UpsertPrice(ctx, price); err != nil {
				return fmt.Errorf("failed to seed price %s %s: %w", price.CarModel, price.Variant, err)
			}
		}
		seeded = len(prices)
	}

	if fees != (pricing.RegistrationFees{}) {
		_, err := store.Fees(ctx)
		switch {
		case errors.Is(err, ErrNotFound):
			if err := store.SaveFees(ctx, fees); err != nil {
				return fmt.Errorf("failed to seed registration fees: %w", err)
			}
		case err != nil:
			return err
		}
	}

	logger.Info("catalog seeded",
		zap.String("op", "catalog.Seed"),
		zap.Int("prices", seeded),
	)
	return nil
}
