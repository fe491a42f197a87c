package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// priceRe matches the first dollar amount in a display string, allowing
// thousands separators: "$5,120.96", "1,234.50", "$34.99".
var priceRe = regexp.MustCompile(`\$?([\d,]+\.?\d*)`)

// ParsePrice extracts the numeric value from a display price. It strips
// the currency symbol and thousands separators; an unparsable string
// yields nil rather than an error, so a bad price never fails a record.
func ParsePrice(display string) *float64 {
	if display == "" {
		return nil
	}

	m := priceRe.FindStringSubmatch(display)
	if m == nil {
		return nil
	}

	val, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	return &val
}
