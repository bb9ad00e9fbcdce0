package config_test

import (
	"strings"
	"testing"

	"github.com/rowanvale/wheelhouse/internal/config"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
network:
  name: Divvy
  feed_url: https://gbfs.divvybikes.com/gbfs/gbfs.json
  city: Chicago
  state: Illinois
  time_zone: America/Chicago
  sample_station: Clark Street and Lake Street
geocoder:
  base_url: https://maps.googleapis.com/maps/api/geocode
  api_key: secret
database:
  url: postgres://wheelhouse@localhost:5432/wheelhouse
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Network.Name != "Divvy" {
		t.Errorf("Network.Name = %q", cfg.Network.Name)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("Server.LogLevel = %q", cfg.Server.LogLevel)
	}
	if loc := cfg.Network.Location(); loc.String() != "America/Chicago" {
		t.Errorf("Location = %q", loc)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(validYAML + "\nbogus: true\n"))
	if err == nil {
		t.Fatal("LoadFromReader accepted an unknown top-level field")
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
server:
  log_level: verbose
network:
  name: Divvy
geocoder: {}
`))
	if err == nil {
		t.Fatal("LoadFromReader accepted an incomplete config")
	}
	for _, want := range []string{"log_level", "feed_url", "city", "state", "base_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestNetworkConfig_LocationFallback(t *testing.T) {
	t.Parallel()

	n := config.NetworkConfig{}
	if n.Location() == nil {
		t.Fatal("Location returned nil for empty time zone")
	}
}
