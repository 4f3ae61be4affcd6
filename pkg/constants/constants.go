// Package constants provides shared constants for the dealership-quote application.
package constants

// DateTimeLayout is the month format used for amortization schedule rows.
const DateTimeLayout = "2006-01"

// DayLayout is the format expected for test-drive booking dates.
const DayLayout = "2006-01-02"

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// DefaultRoundingUnit rounds currency to whole VND
	DefaultRoundingUnit int64 = 1

	// DefaultRegistrationTaxPercent is the provisional registration tax estimate
	DefaultRegistrationTaxPercent = 10.0

	// DefaultMaxTermMonths caps loan terms at eight years
	DefaultMaxTermMonths = 96

	// DefaultMaxAnnualRatePercent caps the annual interest rate accepted by the calculator
	DefaultMaxAnnualRatePercent = 30.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON prints the raw result as indented JSON
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// EnvPrefix is the prefix for environment variable overrides, e.g. DEALER_AUTH_JWTSECRET
	EnvPrefix = "DEALER"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum JSON request body size (256 KB)
	DefaultMaxBodySizeBytes int64 = 256 * 1024

	// DefaultLeadsTopic is the kafka topic captured leads are published to
	DefaultLeadsTopic = "dealership.leads"

	// DefaultJWTIssuer is the issuer stamped on admin tokens
	DefaultJWTIssuer = "dealership-quote"

	// DefaultAdminUsername is the admin login name when none is configured
	DefaultAdminUsername = "admin"

	// DefaultLeadListLimit bounds admin lead listings
	DefaultLeadListLimit = 100
)
