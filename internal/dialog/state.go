package dialog

import "github.com/rowanvale/wheelhouse/internal/userstore"

// Flow tags which multi-turn conversation a session is in the middle of.
// A nil *State means no flow is active.
type Flow string

const (
	FlowAddAddress    Flow = "add_address"
	FlowRemoveAddress Flow = "remove_address"
)

// Step enumerates the stations of the add-address flow, in fixed forward
// order. A Step is only meaningful for FlowAddAddress.
type Step string

const (
	// StepWhich asks whether the address is the origin or the destination.
	StepWhich Step = "which"

	// StepNumAndName captures the street number, direction, and name.
	StepNumAndName Step = "num_and_name"

	// StepZip captures the zip code, or an explicit skip.
	StepZip Step = "zip"

	// StepCheckAddress geocodes the accumulated address and asks the user to
	// confirm the normalised form.
	StepCheckAddress Step = "check_address"

	// StepStoreAddress awaits the yes/no confirmation before persisting.
	StepStoreAddress Step = "store_address"
)

// State is the per-session conversation state round-tripped through the host
// between turns. It is created on the first turn of a flow, mutated by the
// controller each turn, and dropped (nil in the reply) when a flow reaches a
// terminal step or is abandoned.
type State struct {
	Flow Flow `json:"flow"`

	// Step is the current add-address step. Empty for the removal flow.
	Step Step `json:"step,omitempty"`

	// Role is the commute end being captured ("origin" or "destination").
	Role userstore.Role `json:"role,omitempty"`

	// SpokenAddress is the raw street number/direction/name as heard.
	SpokenAddress string `json:"spoken_address,omitempty"`

	// ZipCode is the captured zip; the empty string denotes "skipped".
	// Only meaningful once Step has advanced past StepZip.
	ZipCode string `json:"zip_code,omitempty"`

	// Latitude, Longitude, and FullAddress hold the geocoded result awaiting
	// confirmation at StepStoreAddress.
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	FullAddress string  `json:"full_address,omitempty"`

	// AwaitingConfirmation marks that the removal flow has asked its
	// confirmation question.
	AwaitingConfirmation bool `json:"awaiting_confirmation,omitempty"`
}
