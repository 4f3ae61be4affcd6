// Package quote ties the calculators to the catalog, the price cache and the
// lead publisher.
package quote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/dealership-quote/internal/cache"
	"github.com/iwvelando/dealership-quote/internal/catalog"
	"github.com/iwvelando/dealership-quote/internal/events"
	"github.com/iwvelando/dealership-quote/internal/metrics"
	"github.com/iwvelando/dealership-quote/internal/optimizer"
	"github.com/iwvelando/dealership-quote/pkg/constants"
	"github.com/iwvelando/dealership-quote/pkg/loans"
	"github.com/iwvelando/dealership-quote/pkg/optimization"
	"github.com/iwvelando/dealership-quote/pkg/pricing"
	"github.com/iwvelando/dealership-quote/pkg/validation"
	"go.uber.org/zap"
)

// ErrFeesNotConfigured is returned when a calculation needs the fee row and
// none has been saved.
var ErrFeesNotConfigured = errors.New("registration fees are not configured")

// IsInvalidInput reports whether err was caused by a bad request value.
func IsInvalidInput(err error) bool {
	var loanErr *loans.InputError
	var priceErr *pricing.ValidationError
	var fieldErr *validation.FieldError
	return errors.As(err, &loanErr) || errors.As(err, &priceErr) || errors.As(err, &fieldErr)
}

// Deps are the collaborators of a Service. Store is required; the rest fall
// back to no-op implementations.
type Deps struct {
	Store       catalog.Store
	Cache       cache.PriceCache
	Publisher   events.LeadPublisher
	Metrics     *metrics.Metrics
	Calculator  pricing.Calculator
	LoanOptions loans.Options
	Logger      *zap.Logger
	Now         func() time.Time
}

// Service answers quote, loan and lead requests.
type Service struct {
	store      catalog.Store
	cache      cache.PriceCache
	publisher  events.LeadPublisher
	metrics    *metrics.Metrics
	calculator pricing.Calculator
	loanOpts   loans.Options
	schedules  *loans.AmortizationScheduleGenerator
	optimizer  *optimizer.Runner
	logger     *zap.Logger
	now        func() time.Time
}

// NewService builds a Service from its dependencies.
func NewService(deps Deps) *Service {
	s := &Service{
		store:      deps.Store,
		cache:      deps.Cache,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		calculator: deps.Calculator,
		loanOpts:   deps.LoanOptions,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if s.cache == nil {
		s.cache = cache.NopCache{}
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.calculator.RoundingUnit == 0 {
		s.calculator = pricing.DefaultCalculator()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.schedules = loans.NewAmortizationScheduleGenerator(s.logger, s.loanOpts)
	s.optimizer = optimizer.NewRunner(s.logger, s.loanOpts)
	return s
}

// VariantQuote is one trim of a model. Price fields are zero and omitted for
// variants that are not yet priced.
type VariantQuote struct {
	Variant   pricing.Variant        `json:"variant"`
	Available bool                   `json:"available"`
	BasePrice int64                  `json:"basePrice,omitempty"`
	Promotion int64                  `json:"promotion,omitempty"`
	NetPrice  int64                  `json:"netPrice,omitempty"`
	DriveAway pricing.DriveAwayQuote `json:"driveAway"`
}

// Headline is the "from" price shown on a model card.
type Headline struct {
	Variant   pricing.Variant        `json:"variant"`
	Available bool                   `json:"available"`
	NetPrice  int64                  `json:"netPrice,omitempty"`
	DriveAway pricing.DriveAwayQuote `json:"driveAway"`
}

// ModelQuote is the price sheet of a model.
type ModelQuote struct {
	CarModel string         `json:"carModel"`
	Headline Headline       `json:"headline"`
	Variants []VariantQuote `json:"variants"`
}

// ModelQuote prices every variant of model and picks the headline. Drive-away
// amounts are reported unavailable while no fee row exists.
func (s *Service) ModelQuote(ctx context.Context, model string) (ModelQuote, error) {
	rows, err := s.prices(ctx, model)
	if err != nil {
		return ModelQuote{}, err
	}

	fees, haveFees, err := s.fees(ctx)
	if err != nil {
		return ModelQuote{}, err
	}
	if !haveFees {
		s.logger.Warn("drive-away prices unavailable without a fee row",
			zap.String("op", "quote.ModelQuote"),
			zap.String("model", model),
		)
	}

	driveAway := func(vp pricing.VehiclePrice) pricing.DriveAwayQuote {
		if !haveFees {
			return pricing.Unavailable()
		}
		return s.calculator.ComputeDriveAwayPrice(vp, fees)
	}

	result := ModelQuote{CarModel: rows[0].CarModel, Variants: make([]VariantQuote, 0, len(rows))}
	for _, row := range rows {
		vq := VariantQuote{Variant: row.Variant, Available: row.PriceAvailable, DriveAway: driveAway(row)}
		if row.PriceAvailable {
			vq.BasePrice = row.BasePrice
			vq.Promotion = row.Promotion
			vq.NetPrice = row.NetPrice()
		}
		result.Variants = append(result.Variants, vq)
	}

	sel, _ := pricing.ResolveCheapest(rows)
	result.Headline = Headline{Variant: sel.Price.Variant, Available: sel.Available, DriveAway: pricing.Unavailable()}
	if sel.Available {
		result.Headline.NetPrice = sel.NetPrice
		result.Headline.DriveAway = driveAway(sel.Price)
	}

	s.metrics.QuoteServed("model")
	return result, nil
}

// Selection returns the resolver output for model.
func (s *Service) Selection(ctx context.Context, model string) (pricing.Selection, error) {
	rows, err := s.prices(ctx, model)
	if err != nil {
		return pricing.Selection{}, err
	}
	sel, _ := pricing.ResolveCheapest(rows)
	return sel, nil
}

// Registration itemizes the registration costs of a vehicle.
func (s *Service) Registration(ctx context.Context, variant string, basePrice int64) (pricing.RegistrationFeeResult, error) {
	v, err := pricing.ParseVariant(variant)
	if err != nil {
		return pricing.RegistrationFeeResult{}, err
	}
	if basePrice <= 0 {
		return pricing.RegistrationFeeResult{}, &pricing.ValidationError{Field: "basePrice", Reason: "must be greater than zero"}
	}

	fees, ok, err := s.fees(ctx)
	if err != nil {
		return pricing.RegistrationFeeResult{}, err
	}
	if !ok {
		return pricing.RegistrationFeeResult{}, ErrFeesNotConfigured
	}

	s.metrics.QuoteServed("registration")
	return s.calculator.ComputeRegistrationFees(v, basePrice, fees), nil
}

// Loan computes the monthly payment and totals.
func (s *Service) Loan(input loans.LoanInput) (loans.LoanResult, error) {
	result, err := loans.ComputeLoan(input, s.loanOpts)
	if err != nil {
		return loans.LoanResult{}, err
	}
	s.metrics.QuoteServed("loan")
	return result, nil
}

// FinancedPrincipal returns the loan principal left after a down payment of
// downPaymentPercent on price.
func (s *Service) FinancedPrincipal(price int64, downPaymentPercent float64) (int64, error) {
	return loans.PrincipalFromDownPayment(price, downPaymentPercent, s.loanOpts.RoundingUnit)
}

// Schedule builds the month-by-month repayment table.
func (s *Service) Schedule(input loans.LoanInput, startMonth string) ([]loans.Installment, error) {
	return s.schedules.GenerateSchedule(input, startMonth)
}

// AffordableVariant is a priced variant within the buyer's reach.
type AffordableVariant struct {
	CarModel  string          `json:"carModel"`
	Variant   pricing.Variant `json:"variant"`
	NetPrice  int64           `json:"netPrice"`
	DriveAway int64           `json:"driveAway,omitempty"`
}

func (v AffordableVariant) cost() int64 {
	if v.DriveAway > 0 {
		return v.DriveAway
	}
	return v.NetPrice
}

// Affordability is the highest price a budget can finance and the catalog
// variants at or below it.
type Affordability struct {
	optimization.Summary
	Matches []AffordableVariant `json:"matches"`
}

// Affordability finds the highest price whose loan fits the monthly budget
// and lists the variants it covers, cheapest first. Variants are compared by
// drive-away price, or by net price while no fee row exists.
func (s *Service) Affordability(ctx context.Context, req optimizer.Request) (Affordability, error) {
	summary, err := s.optimizer.MaxPrice(req)
	if err != nil {
		return Affordability{}, err
	}
	result := Affordability{Summary: summary, Matches: []AffordableVariant{}}
	if summary.Value == 0 {
		return result, nil
	}

	fees, haveFees, err := s.fees(ctx)
	if err != nil {
		return Affordability{}, err
	}
	if !haveFees {
		result.Notes = append(result.Notes, "registration fees are not configured; compared against net prices")
	}

	models, err := s.store.ListModels(ctx)
	if err != nil {
		return Affordability{}, err
	}
	for _, model := range models {
		rows, err := s.prices(ctx, model)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return Affordability{}, err
		}
		for _, row := range rows {
			if !row.PriceAvailable {
				continue
			}
			match := AffordableVariant{CarModel: row.CarModel, Variant: row.Variant, NetPrice: row.NetPrice()}
			cost := match.NetPrice
			if haveFees {
				match.DriveAway = s.calculator.ComputeDriveAwayPrice(row, fees).Amount
				cost = match.DriveAway
			}
			if cost <= summary.Value {
				result.Matches = append(result.Matches, match)
			}
		}
	}
	sort.SliceStable(result.Matches, func(i, j int) bool {
		return result.Matches[i].cost() < result.Matches[j].cost()
	})

	s.metrics.QuoteServed("affordability")
	return result, nil
}

// LeadRequest is the public lead form.
type LeadRequest struct {
	Kind          catalog.LeadKind `json:"kind"`
	Name          string           `json:"name"`
	Phone         string           `json:"phone"`
	Email         string           `json:"email"`
	CarModel      string           `json:"carModel"`
	Variant       string           `json:"variant"`
	PreferredDate string           `json:"preferredDate"`
	Note          string           `json:"note"`
}

// SubmitLead validates and stores a lead, then announces it. Publication
// failures are logged and counted but do not fail the submission.
func (s *Service) SubmitLead(ctx context.Context, req LeadRequest) (catalog.Lead, error) {
	lead, err := s.buildLead(req)
	if err != nil {
		return catalog.Lead{}, err
	}

	if err := s.store.SaveLead(ctx, lead); err != nil {
		return catalog.Lead{}, err
	}

	if err := s.publisher.PublishLeadCaptured(ctx, lead); err != nil {
		s.metrics.PublishFailed()
		s.logger.Error("failed to publish lead",
			zap.String("op", "quote.SubmitLead"),
			zap.String("lead_id", lead.ID.String()),
			zap.Error(err),
		)
	}

	s.metrics.LeadCaptured(string(lead.Kind))
	s.logger.Info("lead captured",
		zap.String("op", "quote.SubmitLead"),
		zap.String("lead_id", lead.ID.String()),
		zap.String("kind", string(lead.Kind)),
	)
	return lead, nil
}

func (s *Service) buildLead(req LeadRequest) (catalog.Lead, error) {
	kind := req.Kind
	if kind == "" {
		kind = catalog.LeadQuote
	}
	if !kind.Valid() {
		return catalog.Lead{}, &validation.FieldError{Field: "kind", Reason: fmt.Sprintf("unknown lead kind %q", req.Kind)}
	}
	if err := validation.ValidateLead(req.Name, req.Phone); err != nil {
		return catalog.Lead{}, err
	}
	phone, err := validation.NormalizePhone(req.Phone)
	if err != nil {
		return catalog.Lead{}, err
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		return catalog.Lead{}, err
	}

	now := s.now()
	lead := catalog.Lead{
		ID:        uuid.New(),
		Kind:      kind,
		Name:      strings.TrimSpace(req.Name),
		Phone:     phone,
		Email:     strings.TrimSpace(req.Email),
		CarModel:  strings.TrimSpace(req.CarModel),
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: now.UTC(),
	}
	if req.Variant != "" {
		v, err := pricing.ParseVariant(req.Variant)
		if err != nil {
			return catalog.Lead{}, err
		}
		lead.Variant = string(v)
	}
	if kind == catalog.LeadTestDrive {
		day, err := validation.ValidateBookingDate(req.PreferredDate, now)
		if err != nil {
			return catalog.Lead{}, err
		}
		lead.PreferredDate = day.Format(constants.DayLayout)
	}
	return lead, nil
}

// ListModels returns the model names in catalog order.
func (s *Service) ListModels(ctx context.Context) ([]string, error) {
	return s.store.ListModels(ctx)
}

// ListLeads returns the newest leads, capped at the admin listing limit.
func (s *Service) ListLeads(ctx context.Context, limit int) ([]catalog.Lead, error) {
	if limit <= 0 || limit > constants.DefaultLeadListLimit {
		limit = constants.DefaultLeadListLimit
	}
	return s.store.ListLeads(ctx, limit)
}

// UpsertPrice validates and saves a price row, then drops the model's cache entry.
func (s *Service) UpsertPrice(ctx context.Context, price pricing.VehiclePrice) error {
	price.CarModel = strings.TrimSpace(price.CarModel)
	if v, err := pricing.ParseVariant(string(price.Variant)); err == nil {
		price.Variant = v
	}
	if err := price.Validate(); err != nil {
		return err
	}
	if err := s.store.UpsertPrice(ctx, price); err != nil {
		return err
	}
	s.invalidate(ctx, price.CarModel)
	return nil
}

// DeletePrice removes one variant row of a model.
func (s *Service) DeletePrice(ctx context.Context, model, variant string) error {
	v, err := pricing.ParseVariant(variant)
	if err != nil {
		return err
	}
	if err := s.store.DeletePrice(ctx, model, v); err != nil {
		return err
	}
	s.invalidate(ctx, model)
	return nil
}

// Fees returns the global fee row.
func (s *Service) Fees(ctx context.Context) (pricing.RegistrationFees, error) {
	fees, ok, err := s.fees(ctx)
	if err != nil {
		return pricing.RegistrationFees{}, err
	}
	if !ok {
		return pricing.RegistrationFees{}, ErrFeesNotConfigured
	}
	return fees, nil
}

// SaveFees validates and replaces the global fee row.
func (s *Service) SaveFees(ctx context.Context, fees pricing.RegistrationFees) error {
	if err := fees.Validate(); err != nil {
		return err
	}
	return s.store.SaveFees(ctx, fees)
}

func (s *Service) fees(ctx context.Context) (pricing.RegistrationFees, bool, error) {
	fees, err := s.store.Fees(ctx)
	if errors.Is(err, catalog.ErrNotFound) {
		return pricing.RegistrationFees{}, false, nil
	}
	if err != nil {
		return pricing.RegistrationFees{}, false, err
	}
	return fees, true, nil
}

// prices reads through the cache. Cache failures are logged and fall back to the store.
func (s *Service) prices(ctx context.Context, model string) ([]pricing.VehiclePrice, error) {
	rows, hit, err := s.cache.Get(ctx, model)
	switch {
	case err != nil:
		s.metrics.CacheLookup("error")
		s.logger.Warn("price cache read failed",
			zap.String("op", "quote.prices"),
			zap.String("model", model),
			zap.Error(err),
		)
	case hit && len(rows) > 0:
		s.metrics.CacheLookup("hit")
		return rows, nil
	default:
		s.metrics.CacheLookup("miss")
	}

	rows, err = s.store.PricesByModel(ctx, model)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, model, rows); err != nil {
		s.logger.Warn("price cache write failed",
			zap.String("op", "quote.prices"),
			zap.String("model", model),
			zap.Error(err),
		)
	}
	return rows, nil
}

func (s *Service) invalidate(ctx context.Context, model string) {
	if err := s.cache.Invalidate(ctx, model); err != nil {
		s.logger.Warn("price cache invalidation failed",
			zap.String("op", "quote.invalidate"),
			zap.String("model", model),
			zap.Error(err),
		)
	}
}
