package id

import (
	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. IDs from one process are strictly increasing,
// so they double as a creation-order tiebreaker in both stores.
func New() string {
	return ulid.Make().String()
}
