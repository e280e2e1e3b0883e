package orchestrator

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/sequencer"
)

func TestBootstrapResult_RecordConcurrent(t *testing.T) {
	t.Parallel()

	r := &BootstrapResult{Phases: make(map[string]PhaseResult)}

	var wg sync.WaitGroup
	for _, name := range []string{PhaseMount, PhaseAssets} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.record(PhaseResult{Name: name, Status: StatusOK})
		}()
	}
	wg.Wait()

	assert.Len(t, r.Phases, 2)
}

func TestBootstrapResult_JSONShape(t *testing.T) {
	t.Parallel()

	r := BootstrapResult{
		Status: StatusError,
		Phases: map[string]PhaseResult{
			PhaseMount:  {Name: PhaseMount, Status: StatusOK},
			PhaseAssets: {Name: PhaseAssets, Status: StatusError, Error: "font missing"},
		},
		Sequencer: sequencer.Status{Phase: sequencer.PhaseFailed, Mounted: true},
	}

	data, err := json.Marshal(&r)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "error", got["status"])
	phases, ok := got["phases"].(map[string]any)
	require.True(t, ok)

	mount, ok := phases["mount"].(map[string]any)
	require.True(t, ok)
	_, hasError := mount["error"]
	assert.False(t, hasError, "error omitted when empty")

	assets, ok := phases["assets"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "font missing", assets["error"])

	seq, ok := got["sequencer"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "failed", seq["phase"])
	assert.Equal(t, true, seq["mounted"])
}
