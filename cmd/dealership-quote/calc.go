package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/iwvelando/dealership-quote/internal/catalog"
	"github.com/iwvelando/dealership-quote/internal/optimizer"
	"github.com/iwvelando/dealership-quote/internal/quote"
	"github.com/iwvelando/dealership-quote/pkg/constants"
	"github.com/iwvelando/dealership-quote/pkg/loans"
	"github.com/iwvelando/dealership-quote/pkg/output"
	"github.com/iwvelando/dealership-quote/pkg/pricing"
	"github.com/spf13/cobra"
)

// localService answers CLI calculations from the configured seed catalog
// without touching postgres, redis or kafka.
func (a *app) localService(ctx context.Context) (*quote.Service, error) {
	store := catalog.NewMemoryStore()
	if err := a.seed(ctx, store); err != nil {
		return nil, err
	}
	return quote.NewService(quote.Deps{
		Store:       store,
		Calculator:  a.conf.Calculator(),
		LoanOptions: a.conf.LoanOptions(),
		Logger:      a.logger,
	}), nil
}

type loanOutput struct {
	Principal int64 `json:"principal"`
	loans.LoanResult
	Schedule []loans.Installment `json:"schedule,omitempty"`
}

func loanCmd(a *app) *cobra.Command {
	var (
		input       loans.LoanInput
		price       int64
		downPayment float64
		schedule    bool
		startMonth  string
	)

	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Estimate the monthly payment of a car loan",
		Example: "  dealership-quote loan --principal 1000000000 --rate 8.5 --term 60\n" +
			"  dealership-quote loan --price 776280700 --down-payment 30 --rate 8.5 --term 60 --schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.localService(cmd.Context())
			if err != nil {
				return err
			}

			if input.Principal == 0 && price > 0 {
				input.Principal, err = svc.FinancedPrincipal(price, downPayment)
				if err != nil {
					return err
				}
			}

			result, err := svc.Loan(input)
			if err != nil {
				return err
			}

			out := loanOutput{Principal: input.Principal, LoanResult: result}
			format := a.conf.Output.Format
			if schedule || format == constants.OutputFormatCSV {
				out.Schedule, err = svc.Schedule(input, startMonth)
				if err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			switch format {
			case constants.OutputFormatCSV:
				return output.CsvSchedule(w, out.Schedule)
			case constants.OutputFormatJSON:
				return output.JSON(w, out)
			default:
				output.PrettyLoan(w, input, result)
				if len(out.Schedule) > 0 {
					fmt.Fprintln(w)
					output.PrettySchedule(w, out.Schedule)
				}
				return nil
			}
		},
	}

	f := cmd.Flags()
	f.Int64Var(&input.Principal, "principal", 0, "amount financed in VND")
	f.Float64Var(&input.AnnualRatePercent, "rate", 0, "annual interest rate in percent")
	f.IntVar(&input.TermMonths, "term", 0, "loan term in months")
	f.Float64Var(&input.InsurancePercent, "insurance", 0, "one-off loan insurance in percent of the principal, spread evenly over the term")
	f.Int64Var(&price, "price", 0, "vehicle price in VND, used with --down-payment when --principal is not set")
	f.Float64Var(&downPayment, "down-payment", 0, "down payment in percent of --price")
	f.BoolVar(&schedule, "schedule", false, "print the month-by-month repayment schedule")
	f.StringVar(&startMonth, "start-month", "", "first repayment month (YYYY-MM)")
	return cmd
}

type registrationOutput struct {
	Variant   pricing.Variant               `json:"variant"`
	BasePrice int64                         `json:"basePrice"`
	Fees      pricing.RegistrationFeeResult `json:"fees"`
}

func registrationCmd(a *app) *cobra.Command {
	var (
		variant   string
		basePrice int64
	)

	cmd := &cobra.Command{
		Use:   "registration",
		Short: "Itemize registration fees for a vehicle",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.localService(cmd.Context())
			if err != nil {
				return err
			}
			fees, err := svc.Registration(cmd.Context(), variant, basePrice)
			if err != nil {
				return err
			}
			v, _ := pricing.ParseVariant(variant)

			w := cmd.OutOrStdout()
			switch a.conf.Output.Format {
			case constants.OutputFormatJSON:
				return output.JSON(w, registrationOutput{Variant: v, BasePrice: basePrice, Fees: fees})
			case constants.OutputFormatCSV:
				return fmt.Errorf("csv output is only available for loan schedules")
			default:
				output.PrettyRegistration(w, v, basePrice, fees)
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&variant, "variant", string(pricing.VariantStandard), "vehicle variant: standard, premium, flagship")
	cmd.Flags().Int64Var(&basePrice, "base-price", 0, "list price before promotion in VND")
	_ = cmd.MarkFlagRequired("base-price")
	return cmd
}

func quoteCmd(a *app) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Show the headline and drive-away price of a model from the configured catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(model) == "" {
				return fmt.Errorf("--model is required")
			}
			svc, err := a.localService(cmd.Context())
			if err != nil {
				return err
			}
			mq, err := svc.ModelQuote(cmd.Context(), model)
			if err != nil {
				return fmt.Errorf("model %q: %w", model, err)
			}

			w := cmd.OutOrStdout()
			switch a.conf.Output.Format {
			case constants.OutputFormatJSON:
				return output.JSON(w, mq)
			case constants.OutputFormatCSV:
				return fmt.Errorf("csv output is only available for loan schedules")
			default:
				sel, err := svc.Selection(cmd.Context(), model)
				if err != nil {
					return err
				}
				output.PrettyModelQuote(w, mq.CarModel, sel, mq.Headline.DriveAway)
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "car model name, e.g. \"VF 8\"")
	return cmd
}

func affordCmd(a *app) *cobra.Command {
	var req optimizer.Request

	cmd := &cobra.Command{
		Use:     "afford",
		Short:   "Find the highest price a monthly budget can finance and the variants it covers",
		Example: "  dealership-quote afford --budget 15000000 --rate 8.5 --term 60 --down-payment 20",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.localService(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.Affordability(cmd.Context(), req)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch a.conf.Output.Format {
			case constants.OutputFormatJSON:
				return output.JSON(w, result)
			case constants.OutputFormatCSV:
				return fmt.Errorf("csv output is only available for loan schedules")
			default:
				output.PrettyAffordability(w, result.Summary)
				for _, m := range result.Matches {
					output.PrettyAffordableVariant(w, m.CarModel, m.Variant, m.NetPrice, m.DriveAway)
				}
				return nil
			}
		},
	}

	f := cmd.Flags()
	f.Int64Var(&req.MonthlyBudget, "budget", 0, "monthly payment budget in VND")
	f.Float64Var(&req.DownPaymentPercent, "down-payment", 0, "down payment in percent of the price")
	f.Float64Var(&req.AnnualRatePercent, "rate", 0, "annual interest rate in percent")
	f.IntVar(&req.TermMonths, "term", 0, "loan term in months")
	f.Float64Var(&req.InsurancePercent, "insurance", 0, "one-off loan insurance in percent of the principal, spread evenly over the term")
	return cmd
}
