package ir

import (
	"fmt"
	"strconv"
)

// Key addresses a single partition output of a layer.
type Key struct {
	Layer     string `json:"layer"`
	Partition int    `json:"partition"`
}

// K is shorthand for constructing a Key.
func K(layer string, partition int) Key {
	return Key{Layer: layer, Partition: partition}
}

// String renders the key as "(layer, partition)".
func (k Key) String() string {
	return "(" + k.Layer + ", " + strconv.Itoa(k.Partition) + ")"
}

// FlattenKeys flattens nested keys into a flat list.
//
// Accepted shapes are Key, []Key, [][]Key and []any holding any mix of those.
// Order is preserved; nil yields an empty list.
func FlattenKeys(spec any) ([]Key, error) {
	var out []Key
	if err := flattenInto(&out, spec); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out *[]Key, spec any) error {
	switch v := spec.(type) {
	case nil:
		return nil
	case Key:
		*out = append(*out, v)
	case []Key:
		*out = append(*out, v...)
	case [][]Key:
		for _, inner := range v {
			*out = append(*out, inner...)
		}
	case []any:
		for i, elem := range v {
			if err := flattenInto(out, elem); err != nil {
				return fmt.Errorf("keys[%d]: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unsupported key type: %T", spec)
	}
	return nil
}
