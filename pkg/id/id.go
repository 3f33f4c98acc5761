// Package id generates identifiers for sync runs.
package id

import "github.com/oklog/ulid/v2"

// New returns a ULID string. ULIDs sort lexicographically by creation time,
// so sync_runs journal rows read back in run order.
func New() string {
	return ulid.Make().String()
}
