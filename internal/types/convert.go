// Package types contains shared types used across multiple packages to avoid
// import cycles between dimension, measure, space and backend.
package types

// ToInt64 converts an interface{} holding any Go numeric kind to int64. Used
// when decoding dimension node names and coordinate atoms out of driver
// values, where database/sql hands back int64/float64 depending on column
// affinity.
func ToInt64(v interface{}) int64 {
	switch i := v.(type) {
	case int64:
		return i
	case int:
		return int64(i)
	case int32:
		return int64(i)
	case int16:
		return int64(i)
	case int8:
		return int64(i)
	case uint:
		return int64(i)
	case uint64:
		return int64(i)
	case uint32:
		return int64(i)
	case uint16:
		return int64(i)
	case uint8:
		return int64(i)
	case float64:
		return int64(i)
	case float32:
		return int64(i)
	default:
		return 0
	}
}

// ToFloat64 converts an interface{} holding any Go numeric kind to float64.
// Used when reading stored measure values back from the fact table, where
// int and float columns both surface through database/sql as interface{}.
func ToFloat64(v interface{}) float64 {
	switch i := v.(type) {
	case float64:
		return i
	case float32:
		return float64(i)
	case int64:
		return float64(i)
	case int:
		return float64(i)
	case int32:
		return float64(i)
	default:
		return 0
	}
}
