package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/projectmerge/internal/model"
)

var amountRe = regexp.MustCompile(`^(-?\d*\.?\d+)\s*([a-z]*)$`)

var amountScales = map[string]float64{
	"":         1,
	"usd":      1,
	"dollars":  1,
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"mm":       1e6,
	"mil":      1e6,
	"million":  1e6,
	"b":        1e9,
	"bn":       1e9,
	"billion":  1e9,
}

// Amount parses a currency field ("$1,234.50", "2.5M", "$3 billion").
// Empty, "-", negative, or unparseable values yield model.UnknownAmount.
func Amount(raw string) model.Amount {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || s == "-" || s == "n/a" {
		return model.UnknownAmount
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		// Accounting notation for a negative value.
		return model.UnknownAmount
	}

	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	m := amountRe.FindStringSubmatch(s)
	if m == nil {
		return model.UnknownAmount
	}

	scale, ok := amountScales[m[2]]
	if !ok {
		return model.UnknownAmount
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 {
		return model.UnknownAmount
	}
	return model.Dollars(v * scale)
}
