package helpers

import (
	"fmt"

	"github.com/guregu/null/v6"
)

// FormatCount formats a count with comma thousand separators
func FormatCount(n int64) string {
	// Handle negative numbers
	negative := n < 0
	if negative {
		n = -n
	}

	str := fmt.Sprintf("%d", n)
	length := len(str)
	if length <= 3 {
		if negative {
			return "-" + str
		}
		return str
	}

	// Build the formatted string with commas as thousand separators
	var result string
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result += ","
		}
		result += string(digit)
	}

	if negative {
		return "-" + result
	}
	return result
}

// FormatPercent formats a fractional return (0.0123) as "+1.23%"
func FormatPercent(r float64) string {
	return fmt.Sprintf("%+.2f%%", r*100)
}

// FormatReturn formats a nullable return, "n/a" when null
func FormatReturn(r null.Float) string {
	if !r.Valid {
		return "n/a"
	}
	return FormatPercent(r.Float64)
}

// Share formats part/total as a percentage, "0.00%" when total is zero
func Share(part, total int64) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(part)*100/float64(total))
}
