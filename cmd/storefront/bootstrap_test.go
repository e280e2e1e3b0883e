package main

import (
	"bytes"
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"storefront/internal/assets"
	"storefront/internal/orchestrator"
	"storefront/internal/sequencer"
)

func sampleReport() bootstrapReport {
	return bootstrapReport{
		Status: orchestrator.StatusError,
		Phases: map[string]orchestrator.PhaseResult{
			orchestrator.PhaseMount:  {Name: orchestrator.PhaseMount, Status: orchestrator.StatusOK},
			orchestrator.PhaseAssets: {Name: orchestrator.PhaseAssets, Status: orchestrator.StatusError, Error: "Ionicons: file does not exist"},
		},
		Sequencer: sequencer.Status{
			Phase:         sequencer.PhaseFailed,
			Mounted:       true,
			Notifications: sequencer.StatusSkipped,
			Commerce:      sequencer.StatusOK,
			Assets: map[string]sequencer.AssetResult{
				"Ionicons": {Name: "Ionicons", Status: "error", Error: "file does not exist", LatencyMs: 3},
			},
		},
		Fonts: []assets.Font{
			{Family: "OpenSans", File: "fonts/OpenSans-Regular.ttf", Format: assets.FormatTrueType, Size: 64},
		},
		CachedFiles: 1,
		Device:      deviceReport{DeviceID: "dev-1"},
	}
}

func TestPrintReport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format    string
		unmarshal func([]byte, any) error
	}{
		{format: "json", unmarshal: json.Unmarshal},
		{format: "yaml", unmarshal: yaml.Unmarshal},
	}

	for _, tc := range tests {
		t.Run(tc.format, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			require.NoError(t, printReport(&buf, tc.format, sampleReport()))

			var got map[string]any
			require.NoError(t, tc.unmarshal(buf.Bytes(), &got))
			assert.Equal(t, "error", got["status"])
			assert.Contains(t, got, "phases")
			assert.Contains(t, got, "sequencer")
			assert.EqualValues(t, 1, got["cachedFiles"])

			// Both formats use the same keys.
			seq := got["sequencer"].(map[string]any)
			ionicons := seq["assets"].(map[string]any)["Ionicons"].(map[string]any)
			assert.EqualValues(t, 3, ionicons["latencyMs"])
			assert.Equal(t, "file does not exist", ionicons["error"])

			fonts := got["fonts"].([]any)
			require.Len(t, fonts, 1)
			assert.Equal(t, "OpenSans", fonts[0].(map[string]any)["family"])
			assert.Equal(t, "dev-1", got["device"].(map[string]any)["deviceId"])
		})
	}
}

func TestPrintReport_YAMLOmitsEmptyErrors(t *testing.T) {
	t.Parallel()

	r := sampleReport()
	r.Phases = map[string]orchestrator.PhaseResult{
		orchestrator.PhaseMount: {Name: orchestrator.PhaseMount, Status: orchestrator.StatusOK},
	}

	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, "yaml", r))
	assert.NotContains(t, buf.String(), "latencyms")
	assert.NotContains(t, buf.String(), `error: ""`)
}

type fakeFonts map[string]assets.Font

func (f fakeFonts) Families() []string {
	out := make([]string, 0, len(f))
	for name := range f {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (f fakeFonts) Font(family string) (assets.Font, bool) {
	font, ok := f[family]
	return font, ok
}

func (f fakeFonts) Cached() int { return 1 }

type fakeDevice struct{}

func (fakeDevice) DeviceID() string { return "dev-1" }
func (fakeDevice) PlayerID() string { return "player-1" }

func (fakeDevice) Listeners() []sequencer.EventName {
	return []sequencer.EventName{sequencer.EventOpened, sequencer.EventIDs, sequencer.EventReceived}
}

func TestNewBootstrapReport(t *testing.T) {
	t.Parallel()

	result := &orchestrator.BootstrapResult{
		Status:    orchestrator.StatusOK,
		Phases:    map[string]orchestrator.PhaseResult{},
		Sequencer: sequencer.Status{Phase: sequencer.PhaseReady, Mounted: true},
	}
	fonts := fakeFonts{
		"Material Icons":        {Family: "Material Icons", File: "vector-icons/MaterialIcons.ttf"},
		"Material Design Icons": {Family: "Material Design Icons", File: "vector-icons/MaterialCommunityIcons.ttf"},
	}

	r := newBootstrapReport(result, fonts, fakeDevice{})

	assert.Equal(t, orchestrator.StatusOK, r.Status)
	assert.Equal(t, sequencer.PhaseReady, r.Sequencer.Phase)
	require.Len(t, r.Fonts, 2)
	assert.Equal(t, "Material Design Icons", r.Fonts[0].Family)
	assert.Equal(t, 1, r.CachedFiles)
	assert.Equal(t, "dev-1", r.Device.DeviceID)
	assert.Equal(t, "player-1", r.Device.PlayerID)
	assert.True(t, sort.StringsAreSorted(r.Device.Listeners))
	assert.Len(t, r.Device.Listeners, 3)
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printSummary(&buf, sampleReport())

	out := buf.String()
	assert.Contains(t, out, "mount")
	assert.Contains(t, out, "Ionicons: file does not exist")
	assert.Contains(t, out, "notifications: skipped, commerce: ok")
	assert.Contains(t, out, "fonts: 1 families from 1 files")
}
