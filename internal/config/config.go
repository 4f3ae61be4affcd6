// Package config defines the data structures related to configuration and
// includes functions for loading, validating and exporting the config.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iwvelando/dealership-quote/pkg/constants"
	"github.com/iwvelando/dealership-quote/pkg/loans"
	"github.com/iwvelando/dealership-quote/pkg/pricing"
	"github.com/iwvelando/dealership-quote/pkg/validation"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

// Configuration holds all configuration for dealership-quote.
type Configuration struct {
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka" yaml:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Pricing  PricingConfig  `mapstructure:"pricing" yaml:"pricing"`
	Finance  FinanceConfig  `mapstructure:"finance" yaml:"finance"`
	Catalog  CatalogConfig  `mapstructure:"catalog" yaml:"catalog"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level,omitempty"`           // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format,omitempty"`         // json, console
	OutputFile string `mapstructure:"outputFile" yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format,omitempty"` // pretty, csv, json
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address" yaml:"address"`
	MaxBodySize     string        `mapstructure:"maxBodySize" yaml:"maxBodySize"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout" yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins" yaml:"allowedOrigins"`
}

// DatabaseConfig selects the postgres catalog. An empty DSN keeps the catalog in memory.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn" yaml:"dsn,omitempty"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime" yaml:"connMaxLifetime"`
}

// RedisConfig enables the price cache when Address is set.
type RedisConfig struct {
	Address  string        `mapstructure:"address" yaml:"address,omitempty"`
	Password string        `mapstructure:"password" yaml:"password,omitempty"`
	DB       int           `mapstructure:"db" yaml:"db"`
	PriceTTL time.Duration `mapstructure:"priceTTL" yaml:"priceTTL"`
}

// KafkaConfig enables lead publication when Brokers is set.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers" yaml:"brokers,omitempty"`
	LeadsTopic   string        `mapstructure:"leadsTopic" yaml:"leadsTopic"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
}

// AuthConfig holds the admin credentials. Both secrets are normally supplied
// through DEALER_AUTH_ADMINPASSWORDHASH and DEALER_AUTH_JWTSECRET.
type AuthConfig struct {
	AdminUsername     string        `mapstructure:"adminUsername" yaml:"adminUsername"`
	AdminPasswordHash string        `mapstructure:"adminPasswordHash" yaml:"adminPasswordHash,omitempty"`
	JWTSecret         string        `mapstructure:"jwtSecret" yaml:"jwtSecret,omitempty"`
	Issuer            string        `mapstructure:"issuer" yaml:"issuer"`
	TokenTTL          time.Duration `mapstructure:"tokenTTL" yaml:"tokenTTL"`
}

// PricingConfig holds the registration tax rate and currency rounding.
type PricingConfig struct {
	RegistrationTaxPercent float64 `mapstructure:"registrationTaxPercent" yaml:"registrationTaxPercent"`
	RoundingUnit           int64   `mapstructure:"roundingUnit" yaml:"roundingUnit"`
}

// FinanceConfig bounds the loans the calculator accepts.
type FinanceConfig struct {
	MaxTermMonths        int     `mapstructure:"maxTermMonths" yaml:"maxTermMonths"`
	MaxAnnualRatePercent float64 `mapstructure:"maxAnnualRatePercent" yaml:"maxAnnualRatePercent"`
}

// CatalogConfig holds the seed data loaded into the store at startup.
type CatalogConfig struct {
	Seed SeedConfig `mapstructure:"seed" yaml:"seed"`
}

// SeedConfig is the initial price table and fee row.
type SeedConfig struct {
	Prices []SeedPrice `mapstructure:"prices" yaml:"prices,omitempty"`
	Fees   SeedFees    `mapstructure:"fees" yaml:"fees"`
}

// SeedPrice is one price row in the config file.
type SeedPrice struct {
	CarModel       string `mapstructure:"carModel" yaml:"carModel"`
	Variant        string `mapstructure:"variant" yaml:"variant"`
	BasePrice      int64  `mapstructure:"basePrice" yaml:"basePrice"`
	Promotion      int64  `mapstructure:"promotion" yaml:"promotion,omitempty"`
	PriceAvailable bool   `mapstructure:"priceAvailable" yaml:"priceAvailable"`
}

// SeedFees is the global registration fee row in the config file.
type SeedFees struct {
	LicensePlate       int64 `mapstructure:"licensePlate" yaml:"licensePlate"`
	RoadFee            int64 `mapstructure:"roadFee" yaml:"roadFee"`
	Insurance          int64 `mapstructure:"insurance" yaml:"insurance"`
	ServiceFee         int64 `mapstructure:"serviceFee" yaml:"serviceFee"`
	InspectionStandard int64 `mapstructure:"inspectionStandard" yaml:"inspectionStandard"`
	InspectionPremium  int64 `mapstructure:"inspectionPremium" yaml:"inspectionPremium"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so env overrides apply even without a file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)

	v.SetDefault("server.address", constants.DefaultServerAddress)
	v.SetDefault("server.maxBodySize", "256K")
	v.SetDefault("server.readTimeout", 10*time.Second)
	v.SetDefault("server.writeTimeout", 15*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.allowedOrigins", []string{"*"})

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 30*time.Minute)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.priceTTL", 5*time.Minute)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.leadsTopic", constants.DefaultLeadsTopic)
	v.SetDefault("kafka.writeTimeout", 5*time.Second)

	v.SetDefault("auth.adminUsername", constants.DefaultAdminUsername)
	v.SetDefault("auth.adminPasswordHash", "")
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.issuer", constants.DefaultJWTIssuer)
	v.SetDefault("auth.tokenTTL", time.Hour)

	v.SetDefault("pricing.registrationTaxPercent", constants.DefaultRegistrationTaxPercent)
	v.SetDefault("pricing.roundingUnit", constants.DefaultRoundingUnit)

	v.SetDefault("finance.maxTermMonths", constants.DefaultMaxTermMonths)
	v.SetDefault("finance.maxAnnualRatePercent", constants.DefaultMaxAnnualRatePercent)
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Environment variables prefixed with DEALER_ override
// file values.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config, %w", err)
	}
	return decode(v)
}

// Defaults returns the configuration built from defaults and environment only.
func Defaults() (*Configuration, error) {
	return decode(newViper())
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	return &configuration, nil
}

// Validate reports settings that make the configuration unusable.
func (c *Configuration) Validate() error {
	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		return err
	}
	if c.Pricing.RoundingUnit < 1 {
		return fmt.Errorf("pricing.roundingUnit must be at least 1, got %d", c.Pricing.RoundingUnit)
	}
	if c.Pricing.RegistrationTaxPercent < 0 || c.Pricing.RegistrationTaxPercent > 100 {
		return fmt.Errorf("pricing.registrationTaxPercent must be between 0 and 100, got %g", c.Pricing.RegistrationTaxPercent)
	}
	if c.Finance.MaxTermMonths < 0 || c.Finance.MaxAnnualRatePercent < 0 {
		return fmt.Errorf("finance bounds must not be negative")
	}
	if _, err := c.SeedPrices(); err != nil {
		return err
	}
	if err := c.SeedFees().Validate(); err != nil {
		return fmt.Errorf("catalog.seed.fees: %w", err)
	}
	return nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string
	if c.Database.DSN == "" {
		warnings = append(warnings, "database.dsn is empty; using the in-memory catalog")
	}
	if c.Redis.Address == "" {
		warnings = append(warnings, "redis.address is empty; price caching is disabled")
	}
	if len(c.Kafka.Brokers) == 0 {
		warnings = append(warnings, "kafka.brokers is empty; leads will not be published")
	}
	if c.Auth.JWTSecret == "" || c.Auth.AdminPasswordHash == "" {
		warnings = append(warnings, "auth.jwtSecret or auth.adminPasswordHash is empty; the admin API is disabled")
	}
	if len(c.Catalog.Seed.Prices) == 0 {
		warnings = append(warnings, "catalog.seed.prices is empty")
	}
	if c.SeedFees() == (pricing.RegistrationFees{}) {
		warnings = append(warnings, "catalog.seed.fees is empty; drive-away prices need a fee row")
	}
	seen := make(map[string]bool)
	for _, p := range c.Catalog.Seed.Prices {
		key := strings.ToLower(p.CarModel + "/" + p.Variant)
		if seen[key] {
			warnings = append(warnings, fmt.Sprintf("catalog.seed.prices has a duplicate row for %s %s; the last one wins", p.CarModel, p.Variant))
		}
		seen[key] = true
	}
	return warnings
}

// AdminEnabled reports whether admin login can be served.
func (c *Configuration) AdminEnabled() bool {
	return c.Auth.JWTSecret != "" && c.Auth.AdminPasswordHash != ""
}

// Calculator returns the registration fee calculator for the pricing policy.
func (c *Configuration) Calculator() pricing.Calculator {
	return pricing.NewCalculator(decimal.NewFromFloat(c.Pricing.RegistrationTaxPercent), c.Pricing.RoundingUnit)
}

// LoanOptions returns the loan calculator bounds and rounding.
func (c *Configuration) LoanOptions() loans.Options {
	return loans.Options{
		RoundingUnit:         c.Pricing.RoundingUnit,
		MaxTermMonths:        c.Finance.MaxTermMonths,
		MaxAnnualRatePercent: c.Finance.MaxAnnualRatePercent,
	}
}

// SeedPrices converts and validates the seed price rows.
func (c *Configuration) SeedPrices() ([]pricing.VehiclePrice, error) {
	rows := make([]pricing.VehiclePrice, 0, len(c.Catalog.Seed.Prices))
	for i, p := range c.Catalog.Seed.Prices {
		variant, err := pricing.ParseVariant(p.Variant)
		if err != nil {
			return nil, fmt.Errorf("catalog.seed.prices[%d]: %w", i, err)
		}
		row := pricing.VehiclePrice{
			CarModel:       strings.TrimSpace(p.CarModel),
			Variant:        variant,
			BasePrice:      p.BasePrice,
			Promotion:      p.Promotion,
			PriceAvailable: p.PriceAvailable,
		}
		if err := row.Validate(); err != nil {
			return nil, fmt.Errorf("catalog.seed.prices[%d]: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SeedFees returns the seed fee row.
func (c *Configuration) SeedFees() pricing.RegistrationFees {
	f := c.Catalog.Seed.Fees
	return pricing.RegistrationFees{
		LicensePlate:       f.LicensePlate,
		RoadFee:            f.RoadFee,
		Insurance:          f.Insurance,
		ServiceFee:         f.ServiceFee,
		InspectionStandard: f.InspectionStandard,
		InspectionPremium:  f.InspectionPremium,
	}
}

// YAML renders the effective configuration with secrets redacted.
func (c *Configuration) YAML() ([]byte, error) {
	out := *c
	redact(&out.Database.DSN)
	redact(&out.Redis.Password)
	redact(&out.Auth.AdminPasswordHash)
	redact(&out.Auth.JWTSecret)
	return yaml.Marshal(&out)
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
