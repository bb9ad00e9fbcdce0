package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rowanvale/wheelhouse/internal/app"
	"github.com/rowanvale/wheelhouse/internal/config"
	"github.com/rowanvale/wheelhouse/internal/dialog"
	"github.com/rowanvale/wheelhouse/internal/geocode"
	"github.com/rowanvale/wheelhouse/internal/station"
	"github.com/rowanvale/wheelhouse/internal/userstore"
)

type staticFeed struct {
	directory []station.Record
}

func (f staticFeed) FetchDirectory(context.Context) ([]station.Record, error) {
	return f.directory, nil
}

type staticGeo struct{}

func (staticGeo) Geocode(context.Context, string) (geocode.Result, error) {
	return geocode.Result{}, nil
}

func testApp(t *testing.T) *app.App {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.ListenAddr = ":0"
	cfg.Network.Name = "Divvy"
	cfg.Network.City = "Chicago"
	cfg.Network.State = "Illinois"
	cfg.Network.SampleStation = "Clark Street and Lake Street"

	a, err := app.New(context.Background(), cfg,
		app.WithStore(userstore.NewMemStore()),
		app.WithDirectorySource(staticFeed{directory: []station.Record{
			{
				ID: "1", Name: "Clark St & Lake St", Address: "Clark St & Lake St",
				Installed: true, Renting: true, Returning: true,
				BikesAvailable: 3, DocksAvailable: 8,
			},
		}}),
		app.WithGeocoder(staticGeo{}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestHandleTurn(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(testApp(t).Handler())
	defer srv.Close()

	body := `{
		"intent": "CheckStatusIntent",
		"user_id": "user-1",
		"slots": {"station_name": "clark street and lake street"}
	}`
	resp, err := http.Post(srv.URL+"/v1/turn", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/turn: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var reply dialog.Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if !strings.Contains(reply.Speech, "3 bikes and 8 docks") {
		t.Errorf("Speech = %q", reply.Speech)
	}
	if !reply.EndSession {
		t.Error("reply kept the session open")
	}
}

func TestHandleTurn_BadRequests(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(testApp(t).Handler())
	t.Cleanup(srv.Close)

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{`},
		{name: "unknown field", body: `{"user_id": "u", "bogus": 1}`},
		{name: "missing user id", body: `{"intent": "HelpIntent"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, err := http.Post(srv.URL+"/v1/turn", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			var errResp struct {
				Error string `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if errResp.Error == "" {
				t.Error("error body is empty")
			}
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(testApp(t).Handler())
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(testApp(t).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestStatefulFlowOverHTTP(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(testApp(t).Handler())
	defer srv.Close()

	post := func(t *testing.T, body string) dialog.Reply {
		t.Helper()
		resp, err := http.Post(srv.URL+"/v1/turn", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		defer resp.Body.Close()
		var reply dialog.Reply
		if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return reply
	}

	reply := post(t, `{"intent": "AddAddressIntent", "user_id": "user-1", "slots": {"which_address": "home"}}`)
	if reply.State == nil {
		t.Fatal("first flow turn returned no state")
	}

	// Round-trip the state back in, the way a host would.
	stateJSON, err := json.Marshal(reply.State)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	reply = post(t, `{"intent": "AddAddressIntent", "user_id": "user-1",
		"slots": {"address_street": "state street", "address_number": "123"},
		"state": `+string(stateJSON)+`}`)
	if !strings.Contains(reply.Speech, "zip code") {
		t.Errorf("Speech = %q, want the zip prompt", reply.Speech)
	}
}
