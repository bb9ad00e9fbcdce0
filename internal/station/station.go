// Package station implements the station resolution engine: normalising
// spoken street names to the feed's canonical abbreviated form, matching one
// or two spoken location terms against a station directory snapshot, and
// ranking stations by great-circle distance from a point.
//
// Resolution is layered: cheap deterministic matches (exact name, substring)
// always win over fuzzy matches so that an already-unambiguous request is
// never "corrected". Fuzzy matching exists to recover from speech-to-text
// noise and only ever proposes a single best guess, never an ambiguous set.
package station

// Record is one station from a directory snapshot. The directory is fetched
// fresh for every query; Records are never mutated or cached by this package
// and IDs are only unique within a single snapshot.
type Record struct {
	// ID is the feed's station identifier.
	ID string

	// Name is the display name, usually a cross-street pair in the feed's
	// abbreviated spelling (e.g. "Halsted St & Archer Ave").
	Name string

	// Address is the street address of the dock.
	Address string

	// CrossStreet is the secondary street label. Empty for most networks.
	CrossStreet string

	Lat float64
	Lon float64

	// Operational flags from the status feed.
	Installed bool
	Renting   bool
	Returning bool

	BikesAvailable int
	DocksAvailable int
}
