package dialog

// Intent names accepted by the controller. The host maps its own intent
// vocabulary onto these before calling [Controller.Handle]; a turn with an
// empty intent is treated as the session-opening launch turn.
const (
	IntentCheckStatus   = "CheckStatusIntent"
	IntentCheckBike     = "CheckBikeIntent"
	IntentListStations  = "ListStationIntent"
	IntentCheckCommute  = "CheckCommuteIntent"
	IntentAddAddress    = "AddAddressIntent"
	IntentCheckAddress  = "CheckAddressIntent"
	IntentRemoveAddress = "RemoveAddressIntent"
	IntentYes           = "YesIntent"
	IntentNo            = "NoIntent"
	IntentNext          = "NextIntent"
	IntentStop          = "StopIntent"
	IntentCancel        = "CancelIntent"
	IntentHelp          = "HelpIntent"
)

// Slot names. A slot may be present with an empty value (the recogniser
// heard the slot but produced no text), which is distinct from absent.
const (
	SlotStationName   = "station_name"
	SlotFirstStreet   = "first_street"
	SlotSecondStreet  = "second_street"
	SlotBikesOrDocks  = "bikes_or_docks"
	SlotStreetName    = "street_name"
	SlotWhichAddress  = "which_address"
	SlotAddressNumber = "address_number"
	SlotDirection     = "direction"
	SlotAddressStreet = "address_street"
	SlotZipCode       = "zip_code"
)

// Turn is one inbound user turn: the host's intent classification, the slot
// values it extracted, and the session state persisted after the previous
// turn (nil on a fresh session).
type Turn struct {
	Intent string            `json:"intent"`
	Slots  map[string]string `json:"slots,omitempty"`
	UserID string            `json:"user_id"`
	State  *State            `json:"state,omitempty"`
}

// Slot returns the named slot's value, or "" when the slot is absent.
func (t Turn) Slot(name string) string {
	return t.Slots[name]
}

// HasSlot reports whether the slot was present at all, even with an empty
// value.
func (t Turn) HasSlot(name string) bool {
	_, ok := t.Slots[name]
	return ok
}

// Reply is the controller's answer to one turn. State carries the
// conversation state the host must persist for the next turn; nil clears it.
type Reply struct {
	Speech     string `json:"speech"`
	Reprompt   string `json:"reprompt,omitempty"`
	CardTitle  string `json:"card_title,omitempty"`
	CardText   string `json:"card_text,omitempty"`
	EndSession bool   `json:"end_session"`
	State      *State `json:"state,omitempty"`
}
