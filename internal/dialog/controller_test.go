package dialog_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rowanvale/wheelhouse/internal/dialog"
	"github.com/rowanvale/wheelhouse/internal/geocode"
	"github.com/rowanvale/wheelhouse/internal/station"
	"github.com/rowanvale/wheelhouse/internal/userstore"
)

type fakeFeed struct {
	directory []station.Record
	err       error
}

func (f fakeFeed) FetchDirectory(context.Context) ([]station.Record, error) {
	return f.directory, f.err
}

type fakeGeo struct {
	result  geocode.Result
	err     error
	queries []string
}

func (f *fakeGeo) Geocode(_ context.Context, address string) (geocode.Result, error) {
	f.queries = append(f.queries, address)
	return f.result, f.err
}

func testDirectory() []station.Record {
	return []station.Record{
		{
			ID: "1", Name: "Clark St & Lake St", Address: "Clark St & Lake St",
			Lat: 41.8859, Lon: -87.6309,
			Installed: true, Renting: true, Returning: true,
			BikesAvailable: 4, DocksAvailable: 5,
		},
		{
			ID: "2", Name: "Morgan St & Lake St", Address: "Morgan St & Lake St",
			Lat: 41.8855, Lon: -87.6521,
			Installed: true, Renting: true, Returning: true,
			BikesAvailable: 1, DocksAvailable: 9,
		},
		{
			ID: "3", Name: "State St & Harrison St", Address: "State St & Harrison St",
			Lat: 41.8740, Lon: -87.6277,
			Installed: true, Renting: false, Returning: true,
			BikesAvailable: 2, DocksAvailable: 7,
		},
	}
}

func testConfig() dialog.Config {
	return dialog.Config{
		NetworkName:   "Divvy",
		City:          "Chicago",
		State:         "Illinois",
		SampleStation: "Clark Street and Lake Street",
		TimeZone:      time.UTC,
	}
}

func newTestController(t *testing.T, feed dialog.DirectorySource, geo dialog.Geocoder, store userstore.Store) *dialog.Controller {
	t.Helper()
	if feed == nil {
		feed = fakeFeed{directory: testDirectory()}
	}
	if geo == nil {
		geo = &fakeGeo{}
	}
	if store == nil {
		store = userstore.NewMemStore()
	}
	return dialog.NewController(feed, geo, store, testConfig(),
		dialog.WithClock(func() time.Time {
			return time.Date(2024, 5, 14, 8, 30, 0, 0, time.UTC)
		}))
}

func TestHandle_Launch(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	reply := c.Handle(context.Background(), dialog.Turn{})

	if !strings.Contains(reply.Speech, "Divvy") {
		t.Errorf("launch speech %q does not name the network", reply.Speech)
	}
	if reply.EndSession {
		t.Error("launch turn ended the session")
	}
}

func TestHandle_CheckStatus(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	reply := c.Handle(context.Background(), dialog.Turn{
		Intent: dialog.IntentCheckStatus,
		Slots:  map[string]string{dialog.SlotStationName: "clark street and lake street"},
	})

	want := "There are 4 bikes and 5 docks at the clark street and lake street station."
	if reply.Speech != want {
		t.Errorf("Speech = %q, want %q", reply.Speech, want)
	}
	if !reply.EndSession {
		t.Error("status reply kept the session open")
	}
	if reply.CardTitle != "Clark St & Lake St Status" {
		t.Errorf("CardTitle = %q", reply.CardTitle)
	}
	if !strings.Contains(reply.CardText, "4 bikes and 5 docks") {
		t.Errorf("CardText = %q", reply.CardText)
	}
	if !strings.Contains(reply.CardText, "Checked at ") {
		t.Errorf("CardText %q has no timestamp line", reply.CardText)
	}
}

func TestHandle_CheckStatus_SingularCounts(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	reply := c.Handle(context.Background(), dialog.Turn{
		Intent: dialog.IntentCheckStatus,
		Slots: map[string]string{
			dialog.SlotFirstStreet:  "morgan street",
			dialog.SlotSecondStreet: "lake street",
		},
	})

	if !strings.Contains(reply.Speech, "There is 1 bike and 9 docks") {
		t.Errorf("Speech = %q", reply.Speech)
	}
}

func TestHandle_CheckStatus_NotRenting(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	reply := c.Handle(context.Background(), dialog.Turn{
		Intent: dialog.IntentCheckStatus,
		Slots:  map[string]string{dialog.SlotStationName: "state street and harrison street"},
	})

	if !strings.Contains(reply.Speech, "isn't renting bikes right now") {
		t.Errorf("Speech = %q", reply.Speech)
	}
}

func TestHandle_CheckStatus_NotFound(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	tests := []struct {
		name  string
		slots map[string]string
		want  string
	}{
		{
			name:  "one term",
			slots: map[string]string{dialog.SlotStationName: "xyzzy plugh"},
			want:  "I couldn't find a station at xyzzy plugh.",
		},
		{
			name: "two terms",
			slots: map[string]string{
				dialog.SlotFirstStreet:  "xyzzy",
				dialog.SlotSecondStreet: "plugh",
			},
			want: "I couldn't find a station at xyzzy and plugh.",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reply := c.Handle(context.Background(), dialog.Turn{
				Intent: dialog.IntentCheckStatus,
				Slots:  tt.slots,
			})
			if reply.Speech != tt.want {
				t.Errorf("Speech = %q, want %q", reply.Speech, tt.want)
			}
			if !reply.EndSession {
				t.Error("not-found reply kept the session open")
			}
		})
	}
}

func TestHandle_CheckStatus_Ambiguous(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	reply := c.Handle(context.Background(), dialog.Turn{
		Intent: dialog.IntentCheckStatus,
		Slots:  map[string]string{dialog.SlotStationName: "lake street"},
	})

	if !strings.HasPrefix(reply.Speech, "I don't know if you mean ") {
		t.Errorf("Speech = %q", reply.Speech)
	}
	if !strings.Contains(reply.Speech, ", or ") {
		t.Errorf("Speech %q does not offer alternatives", reply.Speech)
	}
}

func TestHandle_CheckStatus_FeedError(t *testing.T) {
	t.Parallel()
	c := newTestController(t, fakeFeed{err: errors.New("boom")}, nil, nil)

	reply := c.Handle(context.Background(), dialog.Turn{
		Intent: dialog.IntentCheckStatus,
		Slots:  map[string]string{dialog.SlotStationName: "clark street and lake street"},
	})

	if reply.Speech == "" {
		t.Fatal("feed failure produced empty speech")
	}
	if reply.EndSession {
		t.Error("feed failure ended the session")
	}
}

func TestHandle_CheckStatus_NoLocation(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	reply := c.Handle(context.Background(), dialog.Turn{Intent: dialog.IntentCheckStatus})

	if !strings.Contains(reply.Speech, "didn't understand") {
		t.Errorf("Speech = %q", reply.Speech)
	}
	if reply.EndSession {
		t.Error("malformed turn ended the session")
	}
}

func TestHandle_CheckBike(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	tests := []struct {
		name string
		kind string
		want string
	}{
		{
			name: "bikes",
			kind: "bikes",
			want: "There are 4 bikes available at the clark street and lake street station.",
		},
		{
			name: "docks",
			kind: "docks",
			want: "There are 5 docks available at the clark street and lake street station.",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reply := c.Handle(context.Background(), dialog.Turn{
				Intent: dialog.IntentCheckBike,
				Slots: map[string]string{
					dialog.SlotStationName:  "clark street and lake street",
					dialog.SlotBikesOrDocks: tt.kind,
				},
			})
			if reply.Speech != tt.want {
				t.Errorf("Speech = %q, want %q", reply.Speech, tt.want)
			}
		})
	}
}

func TestHandle_CheckBike_NotRentingPostamble(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	reply := c.Handle(context.Background(), dialog.Turn{
		Intent: dialog.IntentCheckBike,
		Slots: map[string]string{
			dialog.SlotStationName:  "state street and harrison street",
			dialog.SlotBikesOrDocks: "bikes",
		},
	})

	want := "There are 2 bikes available at the state street and harrison street station, but the station isn't renting right now."
	if reply.Speech != want {
		t.Errorf("Speech = %q, want %q", reply.Speech, want)
	}
}

func TestHandle_CheckBike_EmptySlotFallsBackToStatus(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	reply := c.Handle(context.Background(), dialog.Turn{
		Intent: dialog.IntentCheckBike,
		Slots:  map[string]string{dialog.SlotStationName: "clark street and lake street"},
	})

	if !strings.Contains(reply.Speech, "4 bikes and 5 docks") {
		t.Errorf("Speech = %q, want full status fallback", reply.Speech)
	}
}

func TestHandle_ListStations(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	tests := []struct {
		name   string
		street string
		want   string
	}{
		{
			name:   "several",
			street: "lake street",
			want:   "There are 2 stations on lake street: clark street and lake street, morgan street and lake street.",
		},
		{
			name:   "one",
			street: "morgan street",
			want:   "There is 1 station on morgan street: morgan street and lake street.",
		},
		{
			name:   "none",
			street: "xyzzy street",
			want:   "I didn't find any stations on xyzzy street.",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reply := c.Handle(context.Background(), dialog.Turn{
				Intent: dialog.IntentListStations,
				Slots:  map[string]string{dialog.SlotStreetName: tt.street},
			})
			if reply.Speech != tt.want {
				t.Errorf("Speech = %q, want %q", reply.Speech, tt.want)
			}
			if !reply.EndSession {
				t.Error("list reply kept the session open")
			}
		})
	}
}

func TestHandle_CheckCommute(t *testing.T) {
	t.Parallel()
	store := userstore.NewMemStore()
	ctx := context.Background()
	// Origin next to Clark & Lake, destination next to State & Harrison.
	mustUpdate(t, store, "user-1", userstore.RoleOrigin, userstore.Address{
		Latitude: 41.8860, Longitude: -87.6310, Formatted: "100 N Clark St, Chicago, IL",
	})
	mustUpdate(t, store, "user-1", userstore.RoleDestination, userstore.Address{
		Latitude: 41.8741, Longitude: -87.6278, Formatted: "600 S State St, Chicago, IL",
	})
	c := newTestController(t, nil, nil, store)

	reply := c.Handle(ctx, dialog.Turn{Intent: dialog.IntentCheckCommute, UserID: "user-1"})

	if !strings.Contains(reply.Speech, "4 bikes at the clark street and lake street station") {
		t.Errorf("Speech = %q, want bikes near origin", reply.Speech)
	}
	// State & Harrison is not renting, so the nearest usable destination
	// station differs from the geographically nearest one.
	if !strings.Contains(reply.Speech, "docks at the") {
		t.Errorf("Speech = %q, want docks near destination", reply.Speech)
	}
	if reply.CardTitle != "Your Commute" {
		t.Errorf("CardTitle = %q", reply.CardTitle)
	}
	if !reply.EndSession {
		t.Error("commute reply kept the session open")
	}
}

func TestHandle_CheckCommute_LowCountNamesBackup(t *testing.T) {
	t.Parallel()
	store := userstore.NewMemStore()
	// Next to Morgan & Lake, which only has 1 bike.
	mustUpdate(t, store, "user-1", userstore.RoleOrigin, userstore.Address{
		Latitude: 41.8856, Longitude: -87.6520, Formatted: "950 W Lake St, Chicago, IL",
	})
	c := newTestController(t, nil, nil, store)

	reply := c.Handle(context.Background(), dialog.Turn{
		Intent: dialog.IntentCheckCommute, UserID: "user-1",
	})

	if !strings.Contains(reply.Speech, "1 bike at the morgan street and lake street station") {
		t.Errorf("Speech = %q", reply.Speech)
	}
	if !strings.Contains(reply.Speech, "next nearest station") {
		t.Errorf("Speech %q does not name a backup station", reply.Speech)
	}
}

func TestHandle_CheckCommute_NoAddresses(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	reply := c.Handle(context.Background(), dialog.Turn{
		Intent: dialog.IntentCheckCommute, UserID: "user-1",
	})

	if !strings.Contains(reply.Speech, "I don't remember any of your addresses") {
		t.Errorf("Speech = %q", reply.Speech)
	}
}

func TestHandle_StopEndsSession(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	for _, intent := range []string{dialog.IntentStop, dialog.IntentCancel} {
		reply := c.Handle(context.Background(), dialog.Turn{Intent: intent})
		if !reply.EndSession {
			t.Errorf("%s did not end the session", intent)
		}
		if reply.State != nil {
			t.Errorf("%s carried state forward", intent)
		}
	}
}

func TestHandle_Help(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	reply := c.Handle(context.Background(), dialog.Turn{Intent: dialog.IntentHelp})

	if !strings.Contains(reply.Speech, "Divvy") {
		t.Errorf("help speech %q does not name the network", reply.Speech)
	}
	if !strings.Contains(reply.Speech, "Clark Street and Lake Street") {
		t.Errorf("help speech %q does not include the sample station", reply.Speech)
	}
	if reply.EndSession {
		t.Error("help ended the session")
	}
}

func TestHandle_UnknownIntent(t *testing.T) {
	t.Parallel()
	c := newTestController(t, nil, nil, nil)

	reply := c.Handle(context.Background(), dialog.Turn{Intent: "BogusIntent"})

	if !strings.Contains(reply.Speech, "didn't understand") {
		t.Errorf("Speech = %q", reply.Speech)
	}
	if reply.EndSession {
		t.Error("unknown intent ended the session")
	}
}

func mustUpdate(t *testing.T, store userstore.Store, userID string, role userstore.Role, addr userstore.Address) {
	t.Helper()
	if err := store.Update(context.Background(), userID, role, addr); err != nil {
		t.Fatalf("Update(%s, %s): %v", userID, role, err)
	}
}
