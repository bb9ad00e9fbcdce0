// Package dialog implements the conversation state machine for the
// Wheelhouse voice skill: direct station queries, the multi-turn add-address
// and remove-address flows, and the commute check built on stored addresses.
//
// The controller is synchronous and stateless across turns: all conversation
// state travels in and out through [Turn.State] and [Reply.State], so the
// host can run any number of user sessions against one controller. Resolver
// and collaborator failures are always converted into a spoken message for
// the current turn; Handle never returns an error and never panics outward.
package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rowanvale/wheelhouse/internal/geocode"
	"github.com/rowanvale/wheelhouse/internal/observe"
	"github.com/rowanvale/wheelhouse/internal/station"
	"github.com/rowanvale/wheelhouse/internal/userstore"
)

// Spoken fallbacks shared by several handlers.
const (
	speechConfused     = "Sorry, I don't know what you mean. Try again?"
	speechApology      = "I'm sorry, something went wrong. Try again?"
	speechFeedTrouble  = "I'm having trouble reaching the station directory right now. Please try again in a moment."
	repromptNumAndName = "What's the street number and name?"
)

// DirectorySource supplies a fresh station directory snapshot per query.
// Implemented by [feed.Client].
type DirectorySource interface {
	FetchDirectory(ctx context.Context) ([]station.Record, error)
}

// Geocoder converts an address string to coordinates and a normalised
// address. Implemented by [geocode.Client].
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geocode.Result, error)
}

// Config holds the deployment-specific wording and defaults the controller
// bakes into replies.
type Config struct {
	// NetworkName is the bikeshare network's spoken name (e.g. "Divvy").
	NetworkName string

	// City and State are the default geocoding context when the user skips
	// the zip code.
	City  string
	State string

	// SampleStation is a real station name used in the help prompt.
	SampleStation string

	// TimeZone is used for card timestamps. Nil falls back to time.Local.
	TimeZone *time.Location
}

// Option is a functional option for [NewController].
type Option func(*Controller)

// WithMetrics attaches metric instruments. When nil (the default), nothing
// is recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithClock overrides the time source used for card timestamps. Tests use
// this for deterministic output.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller drives one dialog turn at a time. Safe for concurrent use
// across sessions; the host is expected to serialise turns within a session.
type Controller struct {
	feed    DirectorySource
	geo     Geocoder
	store   userstore.Store
	cfg     Config
	metrics *observe.Metrics
	now     func() time.Time
}

// NewController wires a controller to its collaborators.
func NewController(feed DirectorySource, geo Geocoder, store userstore.Store, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		feed:  feed,
		geo:   geo,
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
	if c.cfg.TimeZone == nil {
		c.cfg.TimeZone = time.Local
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Intent sets accepted while each flow is active. Anything else arriving
// mid-flow is user error (or a misrecognition), not flow cancellation.
var addAddressIntents = map[string]bool{
	IntentAddAddress: true,
	IntentNext:       true,
	IntentYes:        true,
	IntentNo:         true,
	IntentStop:       true,
	IntentCancel:     true,
}

var removeAddressIntents = map[string]bool{
	IntentRemoveAddress: true,
	IntentYes:           true,
	IntentNo:            true,
	IntentStop:          true,
	IntentCancel:        true,
}

// Handle processes one turn and always produces a speakable reply. Any
// unexpected internal fault degrades to a generic apology with the session
// kept open.
func (c *Controller) Handle(ctx context.Context, turn Turn) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dialog: recovered from panic", "panic", r, "intent", turn.Intent)
			reply = Reply{Speech: speechApology, State: turn.State}
		}
	}()

	c.countTurn(ctx, turn.Intent)
	if c.metrics != nil {
		start := time.Now()
		defer func() {
			c.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
		}()
	}

	turn = c.recoverFlow(turn)

	switch turn.Intent {
	case IntentCheckBike:
		if turn.Slot(SlotBikesOrDocks) == "" {
			// The bike/dock slot was misheard; fall back on the full status.
			return c.checkStatus(ctx, turn)
		}
		return c.checkBikes(ctx, turn)
	case IntentCheckStatus:
		return c.checkStatus(ctx, turn)
	case IntentListStations:
		return c.listStations(ctx, turn)
	case IntentCheckCommute:
		return c.checkCommute(ctx, turn)
	case IntentAddAddress:
		return c.addAddress(ctx, turn)
	case IntentCheckAddress:
		return c.checkAddress(ctx, turn)
	case IntentRemoveAddress:
		return c.removeAddress(ctx, turn)
	case IntentNext:
		return c.nextIntent(ctx, turn)
	case IntentYes:
		return c.yesIntent(ctx, turn)
	case IntentNo:
		return c.noIntent(ctx, turn)
	case IntentStop, IntentCancel:
		return Reply{Speech: "Okay, exiting.", EndSession: true}
	case IntentHelp:
		return c.help(turn)
	case intentUnparsedAddress:
		return Reply{
			Speech: "I didn't understand that as an address. Please provide an address, " +
				"such as \"123 north State Street\".",
			Reprompt: repromptNumAndName,
			State:    turn.State,
		}
	case "":
		return Reply{Speech: fmt.Sprintf("Ask me a question about a %s station.", c.cfg.NetworkName)}
	default:
		return Reply{Speech: "I didn't understand that. Try again?", State: turn.State}
	}
}

// recoverFlow applies the mid-flow interrupt policy before dispatch. While
// the add-address flow is active, a station-status intent carrying a name
// fragment is almost always the recogniser mishearing an address, so the
// fragment is reinterpreted as the address text. While the removal flow is
// active, any off-flow intent is an implicit "no".
func (c *Controller) recoverFlow(turn Turn) Turn {
	st := turn.State
	if st == nil {
		return turn
	}

	switch st.Flow {
	case FlowAddAddress:
		if addAddressIntents[turn.Intent] {
			return turn
		}
		if turn.Intent == IntentCheckStatus && turn.Slot(SlotStationName) != "" {
			turn.Intent = IntentAddAddress
			if turn.Slots == nil {
				turn.Slots = make(map[string]string, 1)
			}
			turn.Slots[SlotAddressStreet] = turn.Slot(SlotStationName)
			return turn
		}
		turn.Intent = intentUnparsedAddress
	case FlowRemoveAddress:
		if !removeAddressIntents[turn.Intent] {
			turn.Intent = IntentNo
		}
	}
	return turn
}

// intentUnparsedAddress is an internal sentinel produced by recoverFlow for
// add-address turns that could not be salvaged. It is never accepted from
// the host.
const intentUnparsedAddress = "internal/unparsed-address"

// nextIntent is only meaningful as the "skip the zip code" signal inside the
// add-address flow.
func (c *Controller) nextIntent(ctx context.Context, turn Turn) Reply {
	st := turn.State
	if st != nil && st.Flow == FlowAddAddress && st.Step == StepZip {
		st.ZipCode = ""
		st.Step = StepCheckAddress
		return c.addAddress(ctx, turn)
	}
	return Reply{Speech: speechConfused, State: turn.State}
}

// yesIntent routes an affirmative to whichever flow is awaiting one.
func (c *Controller) yesIntent(ctx context.Context, turn Turn) Reply {
	st := turn.State
	switch {
	case st != nil && st.Flow == FlowAddAddress && st.Step == StepStoreAddress:
		return c.storeAddress(ctx, turn)
	case st != nil && st.Flow == FlowRemoveAddress:
		return c.removeAddress(ctx, turn)
	default:
		return Reply{Speech: speechConfused, State: turn.State}
	}
}

// noIntent routes a negative to whichever flow is awaiting one. A "no" at
// the add-address confirmation discards the captured address and returns to
// street entry.
func (c *Controller) noIntent(ctx context.Context, turn Turn) Reply {
	st := turn.State
	switch {
	case st != nil && st.Flow == FlowAddAddress && st.Step == StepStoreAddress:
		st.Step = StepNumAndName
		st.Latitude, st.Longitude, st.FullAddress = 0, 0, ""
		return Reply{
			Speech:   "Okay, what street number and name do you want?",
			Reprompt: repromptNumAndName,
			State:    st,
		}
	case st != nil && st.Flow == FlowRemoveAddress:
		return c.removeAddress(ctx, turn)
	default:
		return Reply{Speech: speechConfused, State: turn.State}
	}
}

func (c *Controller) help(turn Turn) Reply {
	return Reply{
		Speech: fmt.Sprintf("You can ask me how many bikes or docks are at a specific station, "+
			"or else just ask the status of a station. Use the %s station name, such as \"%s\". "+
			"If you only remember one cross-street, you can ask me to list all stations on a "+
			"particular street. If you've told me to \"add an address\", I can remember that and "+
			"use it when you ask me to \"check my commute\". What should I do?",
			c.cfg.NetworkName, c.cfg.SampleStation),
		State: turn.State,
	}
}

// timeString renders the current time for card text in the network's zone.
func (c *Controller) timeString() string {
	return c.now().In(c.cfg.TimeZone).Format(time.ANSIC)
}

// countNoun renders a count with a singular or plural noun: "1 bike",
// "3 bikes".
func countNoun(n int, singular string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %ss", n, singular)
}

// isAre picks the verb agreeing with a count.
func isAre(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}

// capitalize upper-cases the first letter and lower-cases the rest, matching
// how street names are printed on cards.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func (c *Controller) countTurn(ctx context.Context, intent string) {
	if c.metrics == nil {
		return
	}
	if intent == "" {
		intent = "launch"
	}
	c.metrics.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", intent)))
}

func (c *Controller) countResolution(ctx context.Context, outcome station.Outcome) {
	if c.metrics == nil {
		return
	}
	var label string
	switch outcome {
	case station.Found:
		label = "found"
	case station.NotFound:
		label = "not_found"
	case station.Ambiguous:
		label = "ambiguous"
	}
	c.metrics.ResolverOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", label)))
}

func (c *Controller) countCollaboratorError(ctx context.Context, collaborator string) {
	if c.metrics == nil {
		return
	}
	c.metrics.CollaboratorErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("collaborator", collaborator)))
}
