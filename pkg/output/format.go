// Package output provides utilities for formatting and displaying quote results.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/iwvelando/dealership-quote/pkg/format"
	"github.com/iwvelando/dealership-quote/pkg/loans"
	"github.com/iwvelando/dealership-quote/pkg/optimization"
	"github.com/iwvelando/dealership-quote/pkg/pricing"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ComingSoon is shown in place of a price that has not been published.
const ComingSoon = "Coming soon"

func printer() *message.Printer {
	return message.NewPrinter(language.English)
}

// PrettyLoan outputs a human-readable loan summary.
func PrettyLoan(w io.Writer, input loans.LoanInput, result loans.LoanResult) {
	p := printer()
	_, _ = fmt.Fprintf(w, "--- Loan estimate ---\n")
	_, _ = p.Fprintf(w, "Principal       | %s\n", format.VND(input.Principal))
	_, _ = p.Fprintf(w, "Annual rate     | %.2f%%\n", input.AnnualRatePercent)
	_, _ = p.Fprintf(w, "Term            | %d months\n", input.TermMonths)
	if input.InsurancePercent > 0 {
		_, _ = p.Fprintf(w, "Insurance       | %.2f%% per year\n", input.InsurancePercent)
	}
	_, _ = fmt.Fprintf(w, "Monthly payment | %s\n", format.VND(result.MonthlyPayment))
	_, _ = fmt.Fprintf(w, "Total payment   | %s\n", format.VND(result.TotalPayment))
	_, _ = fmt.Fprintf(w, "Total interest  | %s\n", format.VND(result.TotalInterest))
}

// PrettySchedule outputs the amortization schedule as a table.
func PrettySchedule(w io.Writer, schedule []loans.Installment) {
	_, _ = fmt.Fprintf(w, "#   | Month   | Payment | Principal | Interest | Insurance | Remaining\n")
	_, _ = fmt.Fprintf(w, "___ | _______ | _______ | _________ | ________ | _________ | _________\n")
	for _, row := range schedule {
		month := row.Month
		if month == "" {
			month = "-"
		}
		_, _ = fmt.Fprintf(w, "%-3d | %-7s | %s | %s | %s | %s | %s\n",
			row.Number, month,
			format.VND(row.Payment), format.VND(row.Principal), format.VND(row.Interest),
			format.VND(row.Insurance), format.VND(row.Remaining))
	}
}

// CsvSchedule outputs the amortization schedule in comma-separated value format.
func CsvSchedule(w io.Writer, schedule []loans.Installment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"number", "month", "payment", "principal", "interest", "insurance", "remaining"}); err != nil {
		return err
	}
	for _, row := range schedule {
		record := []string{
			strconv.Itoa(row.Number),
			row.Month,
			strconv.FormatInt(row.Payment, 10),
			strconv.FormatInt(row.Principal, 10),
			strconv.FormatInt(row.Interest, 10),
			strconv.FormatInt(row.Insurance, 10),
			strconv.FormatInt(row.Remaining, 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// PrettyRegistration outputs the itemized registration costs.
func PrettyRegistration(w io.Writer, variant pricing.Variant, basePrice int64, fees pricing.RegistrationFeeResult) {
	_, _ = fmt.Fprintf(w, "--- Registration costs (%s, base %s) ---\n", variant, format.VND(basePrice))
	_, _ = fmt.Fprintf(w, "Registration tax | %s\n", format.VND(fees.RegistrationTax))
	_, _ = fmt.Fprintf(w, "License plate    | %s\n", format.VND(fees.LicensePlate))
	_, _ = fmt.Fprintf(w, "Inspection       | %s\n", format.VND(fees.Inspection))
	_, _ = fmt.Fprintf(w, "Road fee         | %s\n", format.VND(fees.RoadFee))
	_, _ = fmt.Fprintf(w, "Insurance        | %s\n", format.VND(fees.Insurance))
	_, _ = fmt.Fprintf(w, "Service fee      | %s\n", format.VND(fees.ServiceFee))
	_, _ = fmt.Fprintf(w, "Total            | %s\n", format.VND(fees.TotalRegistration))
}

// PrettyModelQuote outputs the headline price of a model and its drive-away
// estimate, or the coming-soon state.
func PrettyModelQuote(w io.Writer, model string, sel pricing.Selection, quote pricing.DriveAwayQuote) {
	_, _ = fmt.Fprintf(w, "--- %s ---\n", model)
	_, _ = fmt.Fprintf(w, "Variant     | %s\n", sel.Price.Variant)
	if !sel.Available {
		_, _ = fmt.Fprintf(w, "From        | %s\n", ComingSoon)
		_, _ = fmt.Fprintf(w, "Drive-away  | %s\n", ComingSoon)
		return
	}
	_, _ = fmt.Fprintf(w, "From        | %s (%s)\n", format.VND(sel.NetPrice), format.Millions(sel.NetPrice))
	if sel.Price.Promotion > 0 {
		_, _ = fmt.Fprintf(w, "Promotion   | -%s\n", format.VND(sel.Price.Promotion))
	}
	if !quote.Available {
		_, _ = fmt.Fprintf(w, "Drive-away  | %s\n", ComingSoon)
		return
	}
	_, _ = fmt.Fprintf(w, "Drive-away  | %s\n", format.VND(quote.Amount))
}

// PrettyAffordability outputs the result of a monthly budget search.
func PrettyAffordability(w io.Writer, summary optimization.Summary) {
	_, _ = fmt.Fprintf(w, "--- Affordability (budget %s/month) ---\n", format.VND(summary.MonthlyBudget))
	for _, note := range summary.Notes {
		_, _ = fmt.Fprintf(w, "Note            | %s\n", note)
	}
	if summary.Value == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "Max price       | %s\n", format.VND(summary.Value))
	_, _ = fmt.Fprintf(w, "Financed        | %s\n", format.VND(summary.Principal))
	_, _ = fmt.Fprintf(w, "Monthly payment | %s\n", format.VND(summary.MonthlyPayment))
	_, _ = fmt.Fprintf(w, "Headroom        | %s\n", format.VND(summary.Headroom))
}

// PrettyAffordableVariant outputs one catalog row within the budget.
// driveAway is zero when the fee schedule is unknown.
func PrettyAffordableVariant(w io.Writer, model string, variant pricing.Variant, netPrice, driveAway int64) {
	if driveAway > 0 {
		_, _ = fmt.Fprintf(w, "%s %s | %s (drive-away %s)\n", model, variant, format.VND(netPrice), format.VND(driveAway))
		return
	}
	_, _ = fmt.Fprintf(w, "%s %s | %s\n", model, variant, format.VND(netPrice))
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
