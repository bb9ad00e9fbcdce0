// Package userstore persists each user's saved commute addresses keyed by
// role (origin or destination). The dialog layer reads and writes through the
// [Store] interface and never caches records across turns; [PostgresStore] is
// the production implementation and [MemStore] backs tests.
package userstore

import "context"

// Role names which end of the commute an address belongs to.
type Role string

const (
	RoleOrigin      Role = "origin"
	RoleDestination Role = "destination"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	return r == RoleOrigin || r == RoleDestination
}

// Address is one stored location.
type Address struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// Formatted is the geocoder's normalised address string, stored so it
	// can be read back to the user verbatim.
	Formatted string `json:"address"`
}

// Store is the persistence interface for user addresses.
type Store interface {
	// Get returns all addresses stored for the user. A user with no stored
	// data yields an empty map and a nil error.
	Get(ctx context.Context, userID string) (map[Role]Address, error)

	// Update inserts or replaces the address stored under one role without
	// touching the other role.
	Update(ctx context.Context, userID string, role Role, addr Address) error

	// Delete removes all stored data for the user. Deleting a user with no
	// stored data is not an error.
	Delete(ctx context.Context, userID string) error
}
