package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReturnsCanonicalValue(t *testing.T) {
	status, err := ParseShiftStatus("no_show")
	require.NoError(t, err)
	assert.Equal(t, ShiftStatusNoShow, status)

	_, err = ParseShiftStatus("No_Show")
	assert.EqualError(t, err, `invalid shift status "No_Show"`)

	_, err = ParseOutboxEventType("shift.deleted")
	assert.EqualError(t, err, `invalid event type "shift.deleted"`)
}

func TestDLQReason(t *testing.T) {
	reason, err := ParseOutboxDLQErrorReason("max_attempts")
	require.NoError(t, err)
	assert.Equal(t, OutboxDLQReasonMaxAttempts, reason)
	assert.True(t, OutboxDLQReasonNonRetryable.IsValid())
	assert.False(t, OutboxDLQErrorReason("timeout").IsValid())
}

func TestTerminalShiftStatuses(t *testing.T) {
	for _, s := range validShiftStatuses {
		want := s == ShiftStatusCompleted || s == ShiftStatusCancelled || s == ShiftStatusNoShow
		assert.Equal(t, want, s.IsTerminal(), s)
	}
}
