package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(ActionsEmitted.WithLabelValues("Board", "add"))
	ActionsEmitted.WithLabelValues("Board", "add").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ActionsEmitted.WithLabelValues("Board", "add")))

	Participants.Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(Participants))
	Participants.Set(0)
}

func TestHandler_ExposesCollectors(t *testing.T) {
	reg := NewRegistry()
	ActionErrors.WithLabelValues("Board", "INDEX_ERROR").Inc()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `starcore_replication_action_errors_total{code="INDEX_ERROR",container="Board"}`)
	assert.Contains(t, string(body), "starcore_hub_participants")
	assert.Contains(t, string(body), "go_goroutines")
}
