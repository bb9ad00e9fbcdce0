package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rowanvale/wheelhouse/internal/station"
	"github.com/rowanvale/wheelhouse/internal/userstore"
)

// locationTerms extracts the spoken location from a station-query turn. The
// single station_name slot wins when present; a spoken "X and Y" inside it is
// split back into two terms. Otherwise the first_street/second_street pair is
// used as-is.
func locationTerms(turn Turn) (first, second string, ok bool) {
	if name := turn.Slot(SlotStationName); name != "" {
		parts := strings.Split(name, " and ")
		if len(parts) == 2 {
			return parts[0], parts[1], true
		}
		return name, "", true
	}
	if f := turn.Slot(SlotFirstStreet); f != "" {
		return f, turn.Slot(SlotSecondStreet), true
	}
	return "", "", false
}

// resolveStation fetches a directory snapshot and resolves the turn's spoken
// location to a single station. On any failure it returns a complete spoken
// reply and done=true; the caller only proceeds when done is false.
func (c *Controller) resolveStation(ctx context.Context, turn Turn) (station.Record, Reply, bool) {
	first, second, ok := locationTerms(turn)
	if !ok {
		return station.Record{}, Reply{
			Speech: "I'm sorry, I didn't understand that. Try again?",
			State:  turn.State,
		}, true
	}

	directory, err := c.feed.FetchDirectory(ctx)
	if err != nil {
		slog.Error("dialog: fetch directory", "err", err)
		c.countCollaboratorError(ctx, "feed")
		return station.Record{}, Reply{Speech: speechFeedTrouble, State: turn.State}, true
	}

	res := station.Resolve(directory, first, second, false)
	c.countResolution(ctx, res.Outcome)

	switch res.Outcome {
	case station.NotFound:
		var speech string
		if len(res.Terms) == 2 {
			speech = fmt.Sprintf("I couldn't find a station at %s and %s.", res.Terms[0], res.Terms[1])
		} else {
			speech = fmt.Sprintf("I couldn't find a station at %s.", res.Terms[0])
		}
		return station.Record{}, Reply{Speech: speech, EndSession: true}, true
	case station.Ambiguous:
		return station.Record{}, Reply{
			Speech:     fmt.Sprintf("I don't know if you mean %s.", station.SpeakAlternatives(res.Candidates)),
			EndSession: true,
		}, true
	}
	return res.Station, Reply{}, false
}

// checkStatus answers a full-status question about one station: operational
// gates first, then the bike and dock counts.
func (c *Controller) checkStatus(ctx context.Context, turn Turn) Reply {
	sta, reply, done := c.resolveStation(ctx, turn)
	if done {
		return reply
	}

	speech, ok := outOfServiceSpeech(sta)
	if !ok {
		speech = fmt.Sprintf("There %s %s and %s at the %s station.",
			isAre(sta.BikesAvailable),
			countNoun(sta.BikesAvailable, "bike"),
			countNoun(sta.DocksAvailable, "dock"),
			station.CanonicalToSpeech(sta.Name))
	}

	return Reply{
		Speech:    speech,
		CardTitle: fmt.Sprintf("%s Status", sta.Name),
		CardText: fmt.Sprintf("At %s:\n%s and %s\nChecked at %s",
			sta.Name,
			countNoun(sta.BikesAvailable, "bike"),
			countNoun(sta.DocksAvailable, "dock"),
			c.timeString()),
		EndSession: true,
	}
}

// checkBikes answers a count question for one resource kind at one station.
// The bikes_or_docks slot has already been verified non-empty by dispatch.
func (c *Controller) checkBikes(ctx context.Context, turn Turn) Reply {
	sta, reply, done := c.resolveStation(ctx, turn)
	if done {
		return reply
	}

	if !sta.Installed {
		return Reply{
			Speech: fmt.Sprintf("The %s station isn't installed right now.",
				station.CanonicalToSpeech(sta.Name)),
			CardTitle:  fmt.Sprintf("%s Status", sta.Name),
			CardText:   fmt.Sprintf("At %s:\nnot installed\nChecked at %s", sta.Name, c.timeString()),
			EndSession: true,
		}
	}

	kind := strings.ToLower(turn.Slot(SlotBikesOrDocks))
	count := sta.BikesAvailable
	noun := "bike"
	if strings.HasPrefix(kind, "dock") {
		count = sta.DocksAvailable
		noun = "dock"
	}

	postamble := "."
	if noun == "bike" && !sta.Renting {
		postamble = ", but the station isn't renting right now."
	}

	return Reply{
		Speech: fmt.Sprintf("There %s %s available at the %s station%s",
			isAre(count), countNoun(count, noun),
			station.CanonicalToSpeech(sta.Name), postamble),
		CardTitle: fmt.Sprintf("%s Status", sta.Name),
		CardText: fmt.Sprintf("At %s:\n%s\nChecked at %s",
			sta.Name, countNoun(count, noun), c.timeString()),
		EndSession: true,
	}
}

// outOfServiceSpeech returns the spoken gate message for a station that is
// not fully operational, and whether any gate tripped.
func outOfServiceSpeech(sta station.Record) (string, bool) {
	spoken := station.CanonicalToSpeech(sta.Name)
	switch {
	case !sta.Installed:
		return fmt.Sprintf("The %s station isn't installed right now.", spoken), true
	case !sta.Renting && !sta.Returning:
		return fmt.Sprintf("The %s station isn't in service right now.", spoken), true
	case !sta.Renting:
		return fmt.Sprintf("The %s station isn't renting bikes right now.", spoken), true
	case !sta.Returning:
		return fmt.Sprintf("The %s station isn't accepting bike returns right now.", spoken), true
	}
	return "", false
}

// listStations enumerates every station on one street by exact substring
// match, without the fuzzy fallback.
func (c *Controller) listStations(ctx context.Context, turn Turn) Reply {
	street := turn.Slot(SlotStreetName)
	if street == "" {
		return Reply{
			Speech: "I'm sorry, I didn't understand that. Try again?",
			State:  turn.State,
		}
	}

	directory, err := c.feed.FetchDirectory(ctx)
	if err != nil {
		slog.Error("dialog: fetch directory", "err", err)
		c.countCollaboratorError(ctx, "feed")
		return Reply{Speech: speechFeedTrouble, State: turn.State}
	}

	matches := station.Matches(directory, street, "", true)
	title := fmt.Sprintf("Stations on %s", capitalize(street))

	switch len(matches) {
	case 0:
		return Reply{
			Speech:     fmt.Sprintf("I didn't find any stations on %s.", street),
			CardTitle:  title,
			CardText:   fmt.Sprintf("No stations found on %s.", capitalize(street)),
			EndSession: true,
		}
	case 1:
		return Reply{
			Speech: fmt.Sprintf("There is 1 station on %s: %s.",
				street, station.CanonicalToSpeech(matches[0].Name)),
			CardTitle:  title,
			CardText:   matches[0].Name,
			EndSession: true,
		}
	default:
		spoken := make([]string, len(matches))
		lines := make([]string, len(matches))
		for i, sta := range matches {
			spoken[i] = station.CanonicalToSpeech(sta.Name)
			lines[i] = sta.Name
		}
		return Reply{
			Speech: fmt.Sprintf("There are %d stations on %s: %s.",
				len(matches), street, strings.Join(spoken, ", ")),
			CardTitle:  title,
			CardText:   strings.Join(lines, "\n"),
			EndSession: true,
		}
	}
}

// commuteEnds pairs each stored address role with the resource that matters
// at that end of a commute: bikes to leave the origin, docks to arrive at the
// destination.
var commuteEnds = []struct {
	role userstore.Role
	noun string
}{
	{userstore.RoleOrigin, "bike"},
	{userstore.RoleDestination, "dock"},
}

// checkCommute reports bike availability near the stored origin and dock
// availability near the stored destination, with a second-nearest fallback
// when the nearest station is running low.
func (c *Controller) checkCommute(ctx context.Context, turn Turn) Reply {
	addresses, err := c.store.Get(ctx, turn.UserID)
	if err != nil {
		slog.Error("dialog: load addresses", "err", err)
		c.countCollaboratorError(ctx, "store")
		return Reply{Speech: speechApology, State: turn.State}
	}
	if len(addresses) == 0 {
		return Reply{
			Speech: "I don't remember any of your addresses. " +
				"You can ask me to \"save an address\" if you want to check your commute.",
			EndSession: true,
		}
	}

	directory, err := c.feed.FetchDirectory(ctx)
	if err != nil {
		slog.Error("dialog: fetch directory", "err", err)
		c.countCollaboratorError(ctx, "feed")
		return Reply{Speech: speechFeedTrouble, State: turn.State}
	}

	var speech strings.Builder
	var card strings.Builder
	first := true

	for _, end := range commuteEnds {
		addr, ok := addresses[end.role]
		if !ok {
			continue
		}

		nearest := station.Nearest(addr.Latitude, addr.Longitude, directory, 2)
		if len(nearest) == 0 {
			continue
		}

		primary := nearest[0]
		count := resourceCount(primary, end.noun)

		if first {
			speech.WriteString(fmt.Sprintf("There %s %s at the %s station",
				isAre(count), countNoun(count, end.noun),
				station.CanonicalToSpeech(primary.Name)))
			first = false
		} else {
			speech.WriteString(fmt.Sprintf(", and %s at the %s station",
				countNoun(count, end.noun),
				station.CanonicalToSpeech(primary.Name)))
		}
		card.WriteString(fmt.Sprintf("%s: %s\n", primary.Name, countNoun(count, end.noun)))

		// Running low at the nearest station: volunteer the runner-up.
		if count < 3 && len(nearest) > 1 {
			backup := nearest[1]
			backupCount := resourceCount(backup, end.noun)
			speech.WriteString(fmt.Sprintf(", and %s at the next nearest station, %s",
				countNoun(backupCount, end.noun),
				station.CanonicalToSpeech(backup.Name)))
			card.WriteString(fmt.Sprintf("%s: %s\n", backup.Name, countNoun(backupCount, end.noun)))
		}
	}

	if first {
		return Reply{
			Speech: "I don't remember any of your addresses. " +
				"You can ask me to \"save an address\" if you want to check your commute.",
			EndSession: true,
		}
	}

	speech.WriteString(".")
	card.WriteString(fmt.Sprintf("Checked at %s", c.timeString()))

	return Reply{
		Speech:     speech.String(),
		CardTitle:  "Your Commute",
		CardText:   card.String(),
		EndSession: true,
	}
}

func resourceCount(sta station.Record, noun string) int {
	if noun == "dock" {
		return sta.DocksAvailable
	}
	return sta.BikesAvailable
}
