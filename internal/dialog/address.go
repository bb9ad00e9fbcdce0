package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/rowanvale/wheelhouse/internal/station"
	"github.com/rowanvale/wheelhouse/internal/userstore"
)

// Spoken aliases accepted for each commute end. Matching is exact first, then
// fuzzy, so "hear" still lands on "here".
var (
	originAliases      = []string{"here", "home", "origin"}
	destinationAliases = []string{"there", "work", "school", "destination"}
)

// addAddress advances the add-address flow by one step. Each step validates
// its own input, mutates the state, and either prompts for the next step or
// falls through to it when no further user input is needed.
func (c *Controller) addAddress(ctx context.Context, turn Turn) Reply {
	st := turn.State
	if st == nil || st.Flow != FlowAddAddress {
		st = &State{Flow: FlowAddAddress, Step: StepWhich}
		turn.State = st
	}

	switch st.Step {
	case StepWhich:
		role, ok := roleFromSpeech(turn.Slot(SlotWhichAddress))
		if !ok {
			return Reply{
				Speech:   "Would you like to set the address here or at your destination?",
				Reprompt: "You can say \"here\" or \"destination\".",
				State:    st,
			}
		}
		st.Role = role
		st.Step = StepNumAndName
		return Reply{
			Speech:   fmt.Sprintf("Okay, storing your %s address. What's the street number and name?", role),
			Reprompt: repromptNumAndName,
			State:    st,
		}

	case StepNumAndName:
		street := turn.Slot(SlotAddressStreet)
		if street == "" {
			return Reply{
				Speech:   "Please say a street number and street name.",
				Reprompt: repromptNumAndName,
				State:    st,
			}
		}
		parts := turn.Slot(SlotAddressNumber) + " " + turn.Slot(SlotDirection) + " " + street
		st.SpokenAddress = strings.Join(strings.Fields(parts), " ")
		st.Step = StepZip
		return Reply{
			Speech:   "Got it. Now what's the zip code? You can tell me to skip it if you don't know.",
			Reprompt: "What's the zip code?",
			State:    st,
		}

	case StepZip:
		if !turn.HasSlot(SlotZipCode) {
			return Reply{
				Speech:   "I need the zip code now.",
				Reprompt: "What's the zip code? You can tell me to skip it.",
				State:    st,
			}
		}
		zip := turn.Slot(SlotZipCode)
		if strings.EqualFold(zip, "skip") {
			zip = ""
		}
		st.ZipCode = zip
		st.Step = StepCheckAddress
		return c.geocodeAddress(ctx, st)

	case StepCheckAddress:
		// Reached directly on a retry after a geocoder outage, or from
		// nextIntent when the zip was skipped.
		return c.geocodeAddress(ctx, st)

	case StepStoreAddress:
		return Reply{
			Speech: fmt.Sprintf("Sorry, I didn't understand that. Do you want to set your %s address to %s?",
				st.Role, station.CanonicalToSpeech(st.FullAddress)),
			Reprompt: "Is that the correct address?",
			State:    st,
		}

	default:
		return Reply{Speech: "I'm sorry, I got confused. What do you mean?", State: st}
	}
}

// geocodeAddress runs the check_address step: compose the full query from the
// captured pieces, geocode it, and ask for confirmation of the normalised
// result. A result no more specific than the city means the street part was
// not understood, so the flow returns to street entry.
func (c *Controller) geocodeAddress(ctx context.Context, st *State) Reply {
	var query string
	if st.ZipCode != "" {
		query = fmt.Sprintf("%s, %s, %s", st.SpokenAddress, c.cfg.State, st.ZipCode)
	} else {
		query = fmt.Sprintf("%s, %s, %s", st.SpokenAddress, c.cfg.City, c.cfg.State)
	}

	res, err := c.geo.Geocode(ctx, query)
	if err != nil {
		slog.Error("dialog: geocode", "err", err)
		c.countCollaboratorError(ctx, "geocoder")
		return Reply{Speech: speechApology, State: st}
	}

	cityPrefix := strings.ToLower(c.cfg.City + ", " + c.cfg.State)
	if strings.HasPrefix(strings.ToLower(res.FormattedAddress), cityPrefix) {
		st.Step = StepNumAndName
		return Reply{
			Speech: fmt.Sprintf("I'm sorry, I heard the address \"%s\", but I can't figure out "+
				"where that is. Try a different address, something I can look up on the map.",
				st.SpokenAddress),
			Reprompt: repromptNumAndName,
			State:    st,
		}
	}

	st.Latitude = res.Lat
	st.Longitude = res.Lon
	st.FullAddress = res.FormattedAddress
	st.Step = StepStoreAddress

	return Reply{
		Speech: fmt.Sprintf("Thanks! Do you want to set your %s address to %s?",
			st.Role, station.CanonicalToSpeech(res.FormattedAddress)),
		Reprompt: "Is that the correct address?",
		State:    st,
	}
}

// storeAddress persists the confirmed address and ends the flow. Called from
// yesIntent at the store_address step.
func (c *Controller) storeAddress(ctx context.Context, turn Turn) Reply {
	st := turn.State

	addr := userstore.Address{
		Latitude:  st.Latitude,
		Longitude: st.Longitude,
		Formatted: st.FullAddress,
	}
	if err := c.store.Update(ctx, turn.UserID, st.Role, addr); err != nil {
		slog.Error("dialog: store address", "err", err)
		c.countCollaboratorError(ctx, "store")
		return Reply{
			Speech:     "I'm sorry, something went wrong and I couldn't store the address.",
			EndSession: true,
		}
	}

	return Reply{
		Speech:     fmt.Sprintf("Okay, I've saved your %s address.", st.Role),
		EndSession: true,
	}
}

// removeAddress handles the removal flow: a confirmation question on entry,
// then a yes/no resolution. Anything but an explicit "yes" leaves the stored
// addresses untouched.
func (c *Controller) removeAddress(ctx context.Context, turn Turn) Reply {
	addresses, err := c.store.Get(ctx, turn.UserID)
	if err != nil {
		slog.Error("dialog: load addresses", "err", err)
		c.countCollaboratorError(ctx, "store")
		return Reply{Speech: "Huh. Something went wrong.", EndSession: true}
	}
	if len(addresses) == 0 {
		return Reply{
			Speech:     "I already don't remember any addresses for you.",
			EndSession: true,
		}
	}

	st := turn.State
	if st != nil && st.Flow == FlowRemoveAddress && st.AwaitingConfirmation {
		switch turn.Intent {
		case IntentNo, IntentStop, IntentCancel:
			return Reply{Speech: "Okay, keeping your stored addresses.", EndSession: true}
		case IntentYes:
			if err := c.store.Delete(ctx, turn.UserID); err != nil {
				slog.Error("dialog: delete addresses", "err", err)
				c.countCollaboratorError(ctx, "store")
				return Reply{Speech: "Huh. Something went wrong.", EndSession: true}
			}
			return Reply{
				Speech:     "Okay, I've forgotten all the addresses you told me.",
				EndSession: true,
			}
		default:
			return Reply{Speech: speechConfused, State: st}
		}
	}

	st = &State{Flow: FlowRemoveAddress, AwaitingConfirmation: true}
	return Reply{
		Speech:   "Do you really want me to forget the addresses you gave me?",
		Reprompt: "Say \"yes\" to delete all stored addresses or \"no\" to not change anything.",
		State:    st,
	}
}

// checkAddress reads stored addresses back to the user: one role when the
// turn names it, both otherwise.
func (c *Controller) checkAddress(ctx context.Context, turn Turn) Reply {
	addresses, err := c.store.Get(ctx, turn.UserID)
	if err != nil {
		slog.Error("dialog: load addresses", "err", err)
		c.countCollaboratorError(ctx, "store")
		return Reply{Speech: speechApology, State: turn.State}
	}
	if len(addresses) == 0 {
		return Reply{Speech: "I don't remember any of your addresses.", EndSession: true}
	}

	if role, ok := roleFromSpeech(turn.Slot(SlotWhichAddress)); ok {
		return Reply{Speech: speakAddress(addresses, role), EndSession: true}
	}

	both := speakAddress(addresses, userstore.RoleOrigin) + " " +
		speakAddress(addresses, userstore.RoleDestination)
	return Reply{Speech: both, EndSession: true}
}

func speakAddress(addresses map[userstore.Role]userstore.Address, role userstore.Role) string {
	addr, ok := addresses[role]
	if !ok {
		return fmt.Sprintf("I don't know your %s address.", role)
	}
	return fmt.Sprintf("Your %s address is set to %s.", role, station.CanonicalToSpeech(addr.Formatted))
}

// roleFromSpeech maps a spoken alias onto a role, trying exact membership
// first and falling back to the closest fuzzy alias.
func roleFromSpeech(spoken string) (userstore.Role, bool) {
	spoken = strings.ToLower(strings.TrimSpace(spoken))
	if spoken == "" {
		return "", false
	}

	for _, alias := range originAliases {
		if spoken == alias {
			return userstore.RoleOrigin, true
		}
	}
	for _, alias := range destinationAliases {
		if spoken == alias {
			return userstore.RoleDestination, true
		}
	}

	var (
		bestRole  userstore.Role
		bestScore float64
	)
	for _, alias := range originAliases {
		if score := matchr.JaroWinkler(spoken, alias, false); score > bestScore {
			bestRole, bestScore = userstore.RoleOrigin, score
		}
	}
	for _, alias := range destinationAliases {
		if score := matchr.JaroWinkler(spoken, alias, false); score > bestScore {
			bestRole, bestScore = userstore.RoleDestination, score
		}
	}
	if bestScore < fuzzyRoleThreshold {
		return "", false
	}
	return bestRole, true
}

// fuzzyRoleThreshold mirrors the station resolver's acceptance bar.
const fuzzyRoleThreshold = 0.6
