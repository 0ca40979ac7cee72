package storable

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// ============================================================
// JSON Bridge
// ============================================================
//
// Converts a decoded graph to plain Go values for encoding/json.
// Perl-only information is kept with $-prefixed marker objects:
//   - {"$class": name, "$value": v} for blessed values
//   - {"$bytes": base64} for byte strings that are not valid UTF-8
//   - "$bytes:" + base64 for map keys that are not valid UTF-8
//   - {"$code": source} for code values
//   - {"$tied": v} for tied values

// ToJSON converts a value to JSON bytes.
func ToJSON(v *Value) ([]byte, error) {
	jv, err := ToJSONValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jv)
}

// ToJSONValue converts a value to an interface{} suitable for json.Marshal.
// Nodes reachable along several paths are copied; a node that contains itself
// yields ErrCycle.
func ToJSONValue(v *Value) (interface{}, error) {
	c := jsonConverter{active: make(map[*Value]bool)}
	return c.convert(v)
}

type jsonConverter struct {
	active map[*Value]bool // Nodes on the current path
}

func (c *jsonConverter) convert(v *Value) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if c.active[v] {
		return nil, fmt.Errorf("%w: %s", ErrCycle, v.Kind())
	}
	c.active[v] = true
	defer delete(c.active, v)

	out, err := c.convertKind(v)
	if err != nil {
		return nil, err
	}
	if class, ok := v.Class(); ok {
		return map[string]interface{}{"$class": class, "$value": out}, nil
	}
	return out, nil
}

func (c *jsonConverter) convertKind(v *Value) (interface{}, error) {
	switch v.kind {
	case KindUndef:
		return nil, nil
	case KindBool:
		return v.boolVal, nil
	case KindInteger:
		return float64(v.intVal), nil
	case KindText:
		return v.strVal, nil
	case KindBytes:
		if utf8.Valid(v.bytesVal) {
			return string(v.bytesVal), nil
		}
		return map[string]interface{}{"$bytes": base64.StdEncoding.EncodeToString(v.bytesVal)}, nil
	case KindCode:
		return map[string]interface{}{"$code": string(v.bytesVal)}, nil

	case KindList:
		arr := make([]interface{}, len(v.listVal))
		for i, elem := range v.listVal {
			jv, err := c.convert(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			arr[i] = jv
		}
		return arr, nil

	case KindMap:
		obj := make(map[string]interface{}, len(v.mapVal.Entries))
		for _, e := range v.mapVal.Entries {
			k := jsonKey(e.Key)
			jv, err := c.convert(e.Value)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			obj[k] = jv
		}
		return obj, nil

	case KindTied:
		inner, err := c.convert(v.inner)
		if err != nil {
			return nil, fmt.Errorf("tied: %w", err)
		}
		return map[string]interface{}{"$tied": inner}, nil

	default:
		return nil, fmt.Errorf("storable: cannot convert %s to JSON", v.kind)
	}
}

// jsonKey returns the object key for a map key. Keys that are not valid
// UTF-8 are base64 encoded so distinct keys stay distinct.
func jsonKey(key *Value) string {
	if key.Kind() == KindBytes && !utf8.Valid(key.bytesVal) {
		return "$bytes:" + base64.StdEncoding.EncodeToString(key.bytesVal)
	}
	return key.String()
}
