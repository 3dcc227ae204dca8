package ignition

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
)

type (
	// Parameters holds per module overrides, keyed by module id then parameter name.
	Parameters map[string]map[string]any

	jsonReader interface {
		ReadJSON(path string, target any) error
	}
)

// LoadParameters reads a parameters file. An empty path yields no overrides.
func LoadParameters(reader jsonReader, path string) (Parameters, error) {
	params := make(Parameters)
	if path == "" {
		return params, nil
	}

	if err := reader.ReadJSON(path, &params); err != nil {
		return nil, fmt.Errorf("failed to read parameters file %s: %w", path, err)
	}

	return params, nil
}

// For returns the overrides of a single module.
func (p Parameters) For(moduleID string) map[string]any {
	return p[moduleID]
}

// StringParameter is Parameter for string values.
func (m *ModuleBuilder) StringParameter(name, defaultValue string) string {
	raw := m.Parameter(name, defaultValue)
	value, ok := raw.(string)
	if !ok {
		m.errs = append(m.errs, fmt.Errorf("parameter %s must be a string, got %T", name, raw))
		return defaultValue
	}

	return value
}

// BigIntParameter is Parameter for integers. Decimal strings are accepted
// for values that do not fit a JSON number.
func (m *ModuleBuilder) BigIntParameter(name string, defaultValue int64) *big.Int {
	raw := m.Parameter(name, defaultValue)

	value, err := toBigInt(raw)
	if err != nil {
		m.errs = append(m.errs, fmt.Errorf("parameter %s: %w", name, err))
		return big.NewInt(defaultValue)
	}

	return value
}

func toBigInt(raw any) (*big.Int, error) {
	switch v := raw.(type) {
	case int64:
		return big.NewInt(v), nil
	case int:
		return big.NewInt(int64(v)), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		value, _ := big.NewFloat(v).Int(nil)
		return value, nil
	case json.Number:
		return toBigInt(v.String())
	case string:
		value, ok := new(big.Int).SetString(v, 0)
		if !ok {
			return nil, fmt.Errorf("%q is not an integer", v)
		}
		return value, nil
	case *big.Int:
		return new(big.Int).Set(v), nil
	default:
		return nil, fmt.Errorf("unsupported integer type %T", raw)
	}
}
