package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPromRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPromRecorder(reg)

	r.MessageIngested()
	r.MessageIngested()
	assert.Equal(t, 2.0, testutil.ToFloat64(r.ingested))

	r.MessageDropped(DropMalformed)
	r.MessageDropped(DropPanic)
	r.MessageDropped(DropMalformed)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.dropped.WithLabelValues(DropMalformed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.dropped.WithLabelValues(DropPanic)))

	r.PenaltyApplied("unacceptable")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.penalties.WithLabelValues("unacceptable")))

	r.PersistenceFailed()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.persistFail))

	r.SetKnownDevices(5)
	assert.Equal(t, 5.0, testutil.ToFloat64(r.devices))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestPromRecorder_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPromRecorder(reg)
	assert.Panics(t, func() { NewPromRecorder(reg) })
}
