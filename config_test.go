package triptracker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibi-group/otp-middleware-sub001/interaction"
)

func writeConfig(t *testing.T, yml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	return path
}

func TestLoadAppConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
otp:
  baseURL: http://localhost:4000
`)
	cfg, err := LoadAppConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50.0, cfg.Tracking.DeviationMeters)
	assert.Equal(t, 30, cfg.Tracking.ScheduleBandSeconds)
	assert.Equal(t, 10.0, cfg.Tracking.StepExclusionRadiusMeters)
	assert.Equal(t, 2.0, cfg.Tracking.ImmediateRadiusMeters)
	assert.Equal(t, 5.0, cfg.Tracking.DestinationRadiusMeters)
	assert.Equal(t, 2, cfg.Tracking.TransitApproachStops)
	assert.Equal(t, 500.0, cfg.Tracking.TransitApproachMeters)
	assert.Equal(t, 2000, cfg.Interactions.TimeoutMS)
	assert.Equal(t, 5000, cfg.OTP.TimeoutMS)
}

func TestLoadAppConfigParsesRules(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
otp:
  baseURL: http://localhost:4000
interactions:
  signalURL: http://signals.example.com/call
  rules:
    segments:
      - id: elm-at-first
        start: {lat: 45.5218, lon: -122.3000}
        end: {lat: 45.5218, lon: -122.2987}
        handler: traffic-signal
    agencies:
      - agencyId: GCT
        routes: ["40"]
        handler: bus-operator
`)
	cfg, err := LoadAppConfig(path)
	require.NoError(t, err)

	require.Len(t, cfg.Interactions.Rules.Segments, 1)
	assert.Equal(t, "elm-at-first", cfg.Interactions.Rules.Segments[0].ID)
	assert.Equal(t, interaction.HandlerTrafficSignal, cfg.Interactions.Rules.Segments[0].Handler)
	require.Len(t, cfg.Interactions.Rules.Agencies, 1)
	assert.Equal(t, interaction.HandlerBusOperator, cfg.Interactions.Rules.Agencies[0].Handler)
}

func TestLoadAppConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{
			name: "missing otp base url",
			yml: `
server:
  port: 8080
`,
		},
		{
			name: "bad port",
			yml: `
server:
  port: -1
otp:
  baseURL: http://localhost:4000
`,
		},
		{
			name: "unknown handler kind",
			yml: `
server:
  port: 8080
otp:
  baseURL: http://localhost:4000
interactions:
  rules:
    segments:
      - id: bad
        handler: carrier-pigeon
`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadAppConfig(writeConfig(t, tc.yml))
			assert.Error(t, err)
		})
	}
}

func TestLoadAppConfigMissingFile(t *testing.T) {
	_, err := LoadAppConfig(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
