package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/dealership-quote/internal/config"
	"github.com/iwvelando/dealership-quote/pkg/pricing"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// feeRowID is the primary key of the single global fee row.
const feeRowID = 1

// PriceRow is the vehicle_prices table. ModelKey is the case-folded model name
// used for lookups; rows keep their insertion order through ID.
type PriceRow struct {
	ID             uint      `gorm:"primaryKey"`
	ModelKey       string    `gorm:"size:128;not null;uniqueIndex:idx_vehicle_prices_model_variant"`
	CarModel       string    `gorm:"size:128;not null"`
	Variant        string    `gorm:"size:32;not null;uniqueIndex:idx_vehicle_prices_model_variant"`
	BasePrice      int64     `gorm:"not null;default:0"`
	Promotion      int64     `gorm:"not null;default:0"`
	PriceAvailable bool      `gorm:"not null;default:false"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (PriceRow) TableName() string { return "vehicle_prices" }

// FeeRow is the registration_fees table. It only ever holds one row.
type FeeRow struct {
	ID                 uint  `gorm:"primaryKey"`
	LicensePlate       int64 `gorm:"not null;default:0"`
	RoadFee            int64 `gorm:"not null;default:0"`
	Insurance          int64 `gorm:"not null;default:0"`
	ServiceFee         int64 `gorm:"not null;default:0"`
	InspectionStandard int64 `gorm:"not null;default:0"`
	InspectionPremium  int64 `gorm:"not null;default:0"`
	UpdatedAt          time.Time
}

func (FeeRow) TableName() string { return "registration_fees" }

func priceRowFrom(p pricing.VehiclePrice) PriceRow {
	return PriceRow{
		ModelKey:       modelKey(p.CarModel),
		CarModel:       strings.TrimSpace(p.CarModel),
		Variant:        string(p.Variant),
		BasePrice:      p.BasePrice,
		Promotion:      p.Promotion,
		PriceAvailable: p.PriceAvailable,
	}
}

func (r PriceRow) vehiclePrice() pricing.VehiclePrice {
	return pricing.VehiclePrice{
		CarModel:       r.CarModel,
		Variant:        pricing.Variant(r.Variant),
		BasePrice:      r.BasePrice,
		Promotion:      r.Promotion,
		PriceAvailable: r.PriceAvailable,
	}
}

func feeRowFrom(f pricing.RegistrationFees) FeeRow {
	return FeeRow{
		ID:                 feeRowID,
		LicensePlate:       f.LicensePlate,
		RoadFee:            f.RoadFee,
		Insurance:          f.Insurance,
		ServiceFee:         f.ServiceFee,
		InspectionStandard: f.InspectionStandard,
		InspectionPremium:  f.InspectionPremium,
	}
}

func (r FeeRow) registrationFees() pricing.RegistrationFees {
	return pricing.RegistrationFees{
		LicensePlate:       r.LicensePlate,
		RoadFee:            r.RoadFee,
		Insurance:          r.Insurance,
		ServiceFee:         r.ServiceFee,
		InspectionStandard: r.InspectionStandard,
		InspectionPremium:  r.InspectionPremium,
	}
}

// GormStore is the postgres-backed Store.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore wraps an open connection. Call Migrate before first use.
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{db: db, logger: logger}
}

// Open connects to postgres, applies the pool settings and migrates the schema.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := NewGormStore(db, logger)
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates or updates the catalog tables.
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&PriceRow{}, &FeeRow{}, &Lead{}); err != nil {
		return fmt.Errorf("failed to migrate catalog schema: %w", err)
	}
	s.logger.Debug("catalog schema migrated",
		zap.String("op", "catalog.Migrate"),
	)
	return nil
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PricesByModel loads the model's rows ordered by id.
func (s *GormStore) PricesByModel(ctx context.Context, model string) ([]pricing.VehiclePrice, error) {
	var rows []PriceRow
	err := s.db.WithContext(ctx).
		Where("model_key = ?", modelKey(model)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load prices for %q: %w", model, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	prices := make([]pricing.VehiclePrice, len(rows))
	for i, row := range rows {
		prices[i] = row.vehiclePrice()
	}
	return prices, nil
}

// UpsertPrice validates price and inserts it, updating the existing row on a
// (model_key, variant) conflict.
func (s *GormStore) UpsertPrice(ctx context.Context, price pricing.VehiclePrice) error {
	if err := price.Validate(); err != nil {
		return err
	}

	row := priceRowFrom(price)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "model_key"}, {Name: "variant"}},
		DoUpdates: clause.AssignmentColumns([]string{"car_model", "base_price", "promotion", "price_available", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save price for %s %s: %w", price.CarModel, price.Variant, err)
	}
	return nil
}

// DeletePrice removes one variant row. It returns ErrNotFound when nothing
// was deleted.
func (s *GormStore) DeletePrice(ctx context.Context, model string, variant pricing.Variant) error {
	result := s.db.WithContext(ctx).
		Where("model_key = ? AND variant = ?", modelKey(model), string(variant)).
		Delete(&PriceRow{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete price for %s %s: %w", model, variant, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListModels returns distinct model display names ordered by first insert.
func (s *GormStore) ListModels(ctx context.Context) ([]string, error) {
	var rows []PriceRow
	err := s.db.WithContext(ctx).
		Select("model_key", "car_model").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return distinctModels(rows), nil
}

// distinctModels keeps the first display name seen for each model.
func distinctModels(rows []PriceRow) []string {
	seen := make(map[string]bool, len(rows))
	models := make([]string, 0, len(rows))
	for _, row := range rows {
		if seen[row.ModelKey] {
			continue
		}
		seen[row.ModelKey] = true
		models = append(models, row.CarModel)
	}
	return models
}

// Fees loads the single fee row, or returns ErrNotFound.
func (s *GormStore) Fees(ctx context.Context) (pricing.RegistrationFees, error) {
	var row FeeRow
	err := s.db.WithContext(ctx).First(&row, feeRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pricing.RegistrationFees{}, ErrNotFound
	}
	if err != nil {
		return pricing.RegistrationFees{}, fmt.Errorf("failed to load registration fees: %w", err)
	}
	return row.registrationFees(), nil
}

// SaveFees validates fees and upserts the single fee row.
func (s *GormStore) SaveFees(ctx context.Context, fees pricing.RegistrationFees) error {
	if err := fees.Validate(); err != nil {
		return err
	}

	row := feeRowFrom(fees)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save registration fees: %w", err)
	}
	return nil
}

// SaveLead inserts a lead.
func (s *GormStore) SaveLead(ctx context.Context, lead Lead) error {
	if err := s.db.WithContext(ctx).Create(&lead).Error; err != nil {
		return fmt.Errorf("failed to save lead %s: %w", lead.ID, err)
	}
	return nil
}

// ListLeads returns up to limit leads, newest first. A limit of 0 returns all.
func (s *GormStore) ListLeads(ctx context.Context, limit int) ([]Lead, error) {
	var leads []Lead
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}
