package executor

import (
	"time"

	"github.com/mitchellh/hashstructure"

	"github.com/secsim/go-kql/kql"
)

// nullCell marks a null in a hashed tuple so it cannot collide with
// any scalar value.
type nullCell struct{}

// normalizeForHash maps a cell to a plain scalar before hashing.
// time.Time must not reach the hasher directly: its fields are
// unexported and would all hash alike.
func normalizeForHash(v kql.Value) interface{} {
	switch val := v.(type) {
	case nil:
		return nullCell{}
	case time.Time:
		return val.UTC().UnixNano()
	case time.Duration:
		return int64(val)
	default:
		return v
	}
}

// hashKey hashes a tuple of cells for grouping and deduplication.
func hashKey(vals []kql.Value) (uint64, error) {
	normalized := make([]interface{}, len(vals))
	for i, v := range vals {
		normalized[i] = normalizeForHash(v)
	}
	return hashstructure.Hash(normalized, nil)
}

// hashValue hashes a single cell, used by dcount.
func hashValue(v kql.Value) (uint64, error) {
	return hashstructure.Hash(normalizeForHash(v), nil)
}
