package contracts

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ConvertArgs coerces loosely typed plan arguments into the Go types abi.Pack
// expects for arguments.
func ConvertArgs(arguments abi.Arguments, values []any) ([]any, error) {
	if len(arguments) != len(values) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(arguments), len(values))
	}

	converted := make([]any, len(values))
	for i, argument := range arguments {
		value, err := convertArg(argument.Type, values[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s %s): %w", i, argument.Type.String(), argument.Name, err)
		}
		converted[i] = value
	}

	return converted, nil
}

func convertArg(t abi.Type, value any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		switch v := value.(type) {
		case common.Address:
			return v, nil
		case string:
			if !common.IsHexAddress(v) {
				return nil, fmt.Errorf("%q is not a hex address", v)
			}
			return common.HexToAddress(v), nil
		}
	case abi.UintTy, abi.IntTy:
		return convertInteger(t, value)
	case abi.BoolTy:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		}
	case abi.StringTy:
		if v, ok := value.(string); ok {
			return v, nil
		}
	case abi.BytesTy:
		switch v := value.(type) {
		case []byte:
			return v, nil
		case string:
			return hexutil.Decode(v)
		}
	case abi.FixedBytesTy:
		return convertFixedBytes(t, value)
	default:
		return value, nil
	}

	return nil, fmt.Errorf("cannot use %T as %s", value, t.String())
}

func convertInteger(t abi.Type, value any) (any, error) {
	n, err := bigInteger(value)
	if err != nil {
		return nil, err
	}

	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s overflows %s", n, t.String())
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("%s overflows %s", n, t.String())
		}
	}

	goType := t.GetType()
	if goType.Kind() == reflect.Ptr {
		return n, nil
	}

	rv := reflect.New(goType).Elem()
	if t.T == abi.UintTy {
		rv.SetUint(n.Uint64())
	} else {
		rv.SetInt(n.Int64())
	}

	return rv.Interface(), nil
}

func convertFixedBytes(t abi.Type, value any) (any, error) {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		decoded, err := hexutil.Decode(v)
		if err != nil {
			return nil, err
		}
		raw = decoded
	case common.Hash:
		raw = v.Bytes()
	default:
		return nil, fmt.Errorf("cannot use %T as %s", value, t.String())
	}

	if len(raw) != t.Size {
		return nil, fmt.Errorf("expected %d bytes, got %d", t.Size, len(raw))
	}

	rv := reflect.New(t.GetType()).Elem()
	reflect.Copy(rv, reflect.ValueOf(raw))

	return rv.Interface(), nil
}

func bigInteger(value any) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case uint16:
		return big.NewInt(int64(v)), nil
	case string:
		n, ok := new(big.Int).SetString(v, 0)
		if !ok {
			return nil, fmt.Errorf("%q is not an integer", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot use %T as an integer", value)
	}
}
