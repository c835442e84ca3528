package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "git.home.luguber.info/inful/projgen/internal/errors"
)

func TestEncode(t *testing.T) {
	ev := RunEvent{
		RunID:     "r1",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Solution:  "engine",
		Outcome:   "warning",
		Projects:  3,
		Enabled:   2,
		Excluded:  []Excluded{{Project: "net", Reason: "missing-library", Detail: "openssl"}},
	}
	data, err := Encode(ev)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "r1", m["run_id"])
	assert.Equal(t, "2026-01-02T03:04:05Z", m["timestamp"])
	assert.NotContains(t, m, "cycles", "empty lists are omitted")
	assert.NotContains(t, m, "error")
	excluded := m["excluded"].([]any)
	require.Len(t, excluded, 1)
	assert.Equal(t, "openssl", excluded[0].(map[string]any)["detail"])
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(t.Context(), RunEvent{}))
	assert.NoError(t, p.Close())
}

func TestNATSUnreachable(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", "projgen.runs", nil)
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryNotify))
	assert.False(t, perrors.IsFatal(err))
}
