package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordMutationLabels(t *testing.T) {
	r := NewRecorder()
	r.RecordMutation("create_game", nil)
	r.RecordMutation("create_game", nil)
	r.RecordMutation("create_game", errors.New("down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.mutations.WithLabelValues("create_game", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.mutations.WithLabelValues("create_game", "error")))
}

func TestRecordSnapshotSetsGauge(t *testing.T) {
	r := NewRecorder()
	r.RecordSnapshot(4)
	r.RecordSnapshot(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.snapshots))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.mirrorGames))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.RecordMutation("x", nil)
	r.RecordSnapshot(1)
	r.RecordSubscriptionError()
	r.RecordRegistration("ok")
	r.ClientConnected(1)
	assert.Nil(t, r.Registry())
}

func TestHandlerServesMetrics(t *testing.T) {
	r := NewRecorder()
	r.RecordRegistration("ok")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `quizdesk_registrations_total{result="ok"} 1`)
}
