package telemetry

import (
	"testing"
	"time"

	"vibration-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_DeviceAndField(t *testing.T) {
	msg, err := Decode("Pompa3/Vibration/Velocity/X", []byte("1.25"))
	require.NoError(t, err)

	assert.Equal(t, "Pompa3/Vibration", msg.Device)
	assert.Equal(t, "velocity_x", msg.Field)
	assert.Equal(t, models.KindFloat, msg.Value.Kind)
	assert.Equal(t, 1.25, msg.Value.Float)
}

func TestDecode_TooFewSegments(t *testing.T) {
	for _, topic := range []string{"Pompa1", "Pompa1/Vibration", ""} {
		_, err := Decode(topic, []byte("1"))
		assert.ErrorIs(t, err, models.ErrMalformedMessage, topic)
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name  string
		field string
		raw   string
		want  models.Value
	}{
		{"category integer", models.FieldCategory, "4", models.IntegerValue(4)},
		{"category padded", models.FieldCategory, " 3 ", models.IntegerValue(3)},
		{"category not integer", models.FieldCategory, "3.5", models.RawValue("3.5")},
		{"timestamp kept as text", models.FieldTimestamp, "2024-05-01T10:00:00Z", models.TimestampValue("2024-05-01T10:00:00Z")},
		{"float", models.FieldMagnitude, "7.11", models.FloatValue(7.11)},
		{"float fallback raw", "velocity_x", "n/a", models.RawValue("n/a")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Coerce(tt.field, tt.raw))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, ok := ParseTimestamp(models.TimestampValue("2024-05-01T10:00:00Z"))
	require.True(t, ok)
	assert.True(t, ts.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	// 无时区的本地写法也接受
	_, ok = ParseTimestamp(models.TimestampValue("2024-05-01T10:00:00.123456"))
	assert.True(t, ok)

	_, ok = ParseTimestamp(models.TimestampValue("yesterday"))
	assert.False(t, ok)

	_, ok = ParseTimestamp(models.FloatValue(1))
	assert.False(t, ok)
}
