package dispatch

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aluiziolira/go-scrape-kym/scraper"
)

// Kind is the accepted type of an argument value.
type Kind string

const (
	KindInteger Kind = "integer"
	KindString  Kind = "string"
	KindBoolean Kind = "boolean"
)

// Field describes one argument accepted by an operation.
type Field struct {
	Name        string
	Kind        Kind
	Required    bool
	Default     any
	Description string
}

// ValidationError reports arguments that do not match an operation's schema.
type ValidationError struct {
	Operation string
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid arguments for %s: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("invalid arguments for %s: %s %s", e.Operation, e.Field, e.Reason)
}

// Unwrap lets callers match validation failures with errors.Is(err, scraper.ErrInvalidArgument).
func (e *ValidationError) Unwrap() error {
	return scraper.ErrInvalidArgument
}

// Args holds arguments that passed validation, with defaults applied and integers
// normalised to int.
type Args map[string]any

// Bool returns a boolean argument. It is only valid for KindBoolean fields.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Int returns an integer argument. It is only valid for KindInteger fields.
func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}

// String returns a string argument. It is only valid for KindString fields.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func validate(op string, fields []Field, raw map[string]any) (Args, error) {
	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f.Name] = struct{}{}
	}

	var unexpected []string
	for name := range raw {
		if _, ok := known[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, &ValidationError{Operation: op, Reason: "unexpected argument " + strings.Join(quoteAll(unexpected), ", ")}
	}

	args := make(Args, len(fields))
	for _, f := range fields {
		v, present := raw[f.Name]
		if !present || v == nil {
			if f.Required {
				return nil, &ValidationError{Operation: op, Field: f.Name, Reason: "is required"}
			}
			if f.Default != nil {
				args[f.Name] = f.Default
			}
			continue
		}

		switch f.Kind {
		case KindInteger:
			n, ok := toInt(v)
			if !ok {
				return nil, &ValidationError{Operation: op, Field: f.Name, Reason: fmt.Sprintf("must be an integer, got %s", describe(v))}
			}
			args[f.Name] = n
		case KindString:
			s, ok := v.(string)
			if !ok {
				return nil, &ValidationError{Operation: op, Field: f.Name, Reason: fmt.Sprintf("must be a string, got %s", describe(v))}
			}
			if f.Required && strings.TrimSpace(s) == "" {
				return nil, &ValidationError{Operation: op, Field: f.Name, Reason: "is required"}
			}
			args[f.Name] = s
		case KindBoolean:
			b, ok := v.(bool)
			if !ok {
				return nil, &ValidationError{Operation: op, Field: f.Name, Reason: fmt.Sprintf("must be a boolean, got %s", describe(v))}
			}
			args[f.Name] = b
		default:
			return nil, &ValidationError{Operation: op, Field: f.Name, Reason: fmt.Sprintf("has unsupported kind %q", f.Kind)}
		}
	}
	return args, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return intFromInt64(int64(n))
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return intFromInt64(n)
	case uint:
		return intFromUint64(uint64(n))
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return intFromUint64(uint64(n))
	case uint64:
		return intFromUint64(n)
	case float32:
		return intFromFloat(float64(n))
	case float64:
		return intFromFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return intFromInt64(i)
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return intFromFloat(f)
	default:
		return 0, false
	}
}

// Integer arguments are limited to the 32-bit range whatever their Go or JSON form.
const (
	maxIntArg = math.MaxInt32
	minIntArg = math.MinInt32
)

func intFromInt64(n int64) (int, bool) {
	if n > maxIntArg || n < minIntArg {
		return 0, false
	}
	return int(n), true
}

func intFromUint64(n uint64) (int, bool) {
	if n > maxIntArg {
		return 0, false
	}
	return int(n), true
}

func intFromFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > maxIntArg || f < minIntArg {
		return 0, false
	}
	return int(f), true
}

func describe(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float32, float64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}
