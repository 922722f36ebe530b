package catalyst

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/irfndi/catalyst-ai-go/internal/llm"
	"github.com/shopspring/decimal"
)

// decodeObject extracts and decodes the first JSON object in raw model output.
func decodeObject(raw string) (map[string]interface{}, error) {
	obj, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON in model output: %w", err)
	}
	return fields, nil
}

// pick returns the first present key, accepting snake_case and camelCase spellings.
func pick(fields map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func pickString(fields map[string]interface{}, keys ...string) string {
	v, ok := pick(fields, keys...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func pickBool(fields map[string]interface{}, keys ...string) bool {
	v, ok := pick(fields, keys...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	default:
		return false
	}
}

// pickNumber accepts JSON numbers and numeric strings ("7", "7/10", "₹1,250.50").
func pickNumber(fields map[string]interface{}, keys ...string) (float64, bool) {
	v, ok := pick(fields, keys...)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case string:
		return parseLooseNumber(t)
	default:
		return 0, false
	}
}

func pickDecimal(fields map[string]interface{}, keys ...string) decimal.Decimal {
	n, ok := pickNumber(fields, keys...)
	if !ok || n < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(n).Round(2)
}

func parseLooseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
