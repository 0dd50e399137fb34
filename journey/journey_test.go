package journey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMobilityProfileMode(t *testing.T) {
	tests := []struct {
		name    string
		profile MobilityProfile
		mode    string
	}{
		{
			name: "no devices",
			mode: MobilityNone,
		},
		{
			name:    "unrecognized device",
			profile: MobilityProfile{Devices: []string{"cane"}},
			mode:    MobilityDevice,
		},
		{
			name:    "manual wheelchair",
			profile: MobilityProfile{Devices: []string{"manual wheelchair"}},
			mode:    MobilityWChairM,
		},
		{
			name:    "electric wheelchair wins over manual",
			profile: MobilityProfile{Devices: []string{"manual wheelchair", "electric wheelchair"}},
			mode:    MobilityWChairE,
		},
		{
			name:    "scooter does not displace a wheelchair",
			profile: MobilityProfile{Devices: []string{"electric wheelchair", "mobility scooter"}},
			mode:    MobilityWChairE,
		},
		{
			name:    "vision limited alone",
			profile: MobilityProfile{VisionLimited: true},
			mode:    MobilityLowVision,
		},
		{
			name:    "device wins over vision flag",
			profile: MobilityProfile{Devices: []string{"mobility scooter"}, VisionLimited: true},
			mode:    MobilityScooter,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.mode, tc.profile.Mode())
		})
	}
}

func TestMobilityProfileWantsExtendedPhase(t *testing.T) {
	assert.False(t, MobilityProfile{}.WantsExtendedPhase())
	assert.True(t, MobilityProfile{VisionLimited: true}.WantsExtendedPhase())
	assert.True(t, MobilityProfile{Devices: []string{"manual wheelchair"}}.WantsExtendedPhase())
}
