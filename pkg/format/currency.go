package format

import (
	"strconv"
	"strings"
)

// VNDSymbol is appended to formatted amounts.
const VNDSymbol = "₫"

// VND returns a dong amount with dot thousands separators (e.g., "776.280.700 ₫").
func VND(amount int64) string {
	return NumericVND(amount) + " " + VNDSymbol
}

// NumericVND returns a dong amount with separators but no symbol (e.g., "-1.234.567").
func NumericVND(amount int64) string {
	sign := ""
	digits := strconv.FormatInt(amount, 10)
	if amount < 0 {
		sign = "-"
		digits = digits[1:]
	}
	return sign + groupThousands(digits, '.')
}

// Millions renders an amount in millions of dong the way price tags do (e.g., "699 triệu").
func Millions(amount int64) string {
	whole := amount / 1000000
	rest := (amount % 1000000) / 1000
	if rest < 0 {
		rest = -rest
	}
	if rest == 0 {
		return NumericVND(whole) + " triệu"
	}
	frac := strings.TrimRight(strconv.FormatInt(rest+1000, 10)[1:], "0")
	return NumericVND(whole) + "," + frac + " triệu"
}

func groupThousands(digits string, sep byte) string {
	if len(digits) <= 3 {
		return digits
	}
	var builder strings.Builder
	for i, digit := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			builder.WriteByte(sep)
		}
		builder.WriteRune(digit)
	}
	return builder.String()
}
