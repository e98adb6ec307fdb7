package flowcontrol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

func TestModeFor(t *testing.T) {
	assert.Equal(t, ModeAuto, ModeFor(routingtable.AtMostOnce))
	assert.Equal(t, ModeIndividual, ModeFor(routingtable.AtLeastOnce))
	assert.Equal(t, ModeIndividual, ModeFor(routingtable.ExactlyOnce))
	assert.Equal(t, "individual", ModeIndividual.String())
}

func TestParseReleasePolicy(t *testing.T) {
	p, err := ParseReleasePolicy("")
	require.NoError(t, err)
	assert.Equal(t, ReleaseOnHandoff, p)

	p, err = ParseReleasePolicy(" FLUSH ")
	require.NoError(t, err)
	assert.Equal(t, ReleaseOnFlush, p)
	assert.Equal(t, "flush", p.String())

	_, err = ParseReleasePolicy("later")
	assert.Error(t, err)
}

func TestAutoController_Handoff(t *testing.T) {
	credit := NewFixedCreditManager(1)
	c := NewController(ModeAuto, credit, 0, ReleaseOnHandoff)

	for id := uint64(1); id <= 5; id++ {
		outstanding, err := c.Sent(id)
		require.NoError(t, err)
		assert.False(t, outstanding)
	}
	assert.Equal(t, 0, credit.Outstanding())
	assert.Empty(t, c.Outstanding())
	assert.ErrorIs(t, c.Ack(1), ErrUnknownMessage)
}

func TestAutoController_HandoffStillBoundedByPool(t *testing.T) {
	credit := NewFixedCreditManager(1)
	require.NoError(t, credit.Acquire())

	c := NewAutoController(credit, ReleaseOnHandoff)
	assert.False(t, c.CanSend())
	_, err := c.Sent(1)
	assert.ErrorIs(t, err, ErrNoCredit)
}

func TestAutoController_Flush(t *testing.T) {
	credit := NewFixedCreditManager(2)
	c := NewAutoController(credit, ReleaseOnFlush)

	outstanding, err := c.Sent(7)
	require.NoError(t, err)
	assert.True(t, outstanding)
	_, err = c.Sent(8)
	require.NoError(t, err)

	assert.False(t, c.CanSend())
	_, err = c.Sent(9)
	assert.ErrorIs(t, err, ErrNoCredit)

	assert.Equal(t, []uint64{7, 8}, c.Flush())
	assert.Equal(t, 0, credit.Outstanding())
	assert.True(t, c.CanSend())
	assert.Empty(t, c.Flush())
}

func TestIndividualController_AckAndRange(t *testing.T) {
	credit := NewFixedCreditManager(10)
	c := NewController(ModeIndividual, credit, 0, ReleaseOnHandoff)

	for id := uint64(1); id <= 6; id++ {
		outstanding, err := c.Sent(id)
		require.NoError(t, err)
		assert.True(t, outstanding)
	}
	assert.Equal(t, 6, credit.Outstanding())

	require.NoError(t, c.Ack(3))
	assert.ErrorIs(t, c.Ack(3), ErrUnknownMessage)
	assert.Equal(t, 5, credit.Outstanding())

	assert.Equal(t, []uint64{1, 2, 4}, c.AckRange(0, 4))
	assert.Equal(t, []uint64{5, 6}, c.Outstanding())
	assert.Equal(t, 2, credit.Outstanding())
	assert.Empty(t, c.Flush())

	require.NoError(t, c.Reject(5))
	assert.Equal(t, []uint64{6}, c.Cancel())
	assert.Equal(t, 0, credit.Outstanding())
}

func TestIndividualController_ReceiveMaximum(t *testing.T) {
	credit := NewFixedCreditManager(10)
	c := NewIndividualController(credit, 2)

	_, err := c.Sent(1)
	require.NoError(t, err)
	_, err = c.Sent(2)
	require.NoError(t, err)

	assert.False(t, c.CanSend())
	_, err = c.Sent(3)
	assert.ErrorIs(t, err, ErrNoCredit)
	assert.Equal(t, 2, credit.Outstanding(), "member cap rejects before taking pool credit")

	require.NoError(t, c.Ack(1))
	assert.True(t, c.CanSend())
}

func TestIndividualController_SharedPool(t *testing.T) {
	credit := NewFixedCreditManager(3)
	a := NewIndividualController(credit, 0)
	b := NewIndividualController(credit, 0)

	_, err := a.Sent(1)
	require.NoError(t, err)
	_, err = b.Sent(2)
	require.NoError(t, err)
	_, err = a.Sent(3)
	require.NoError(t, err)

	assert.False(t, b.CanSend())
	_, err = b.Sent(4)
	assert.ErrorIs(t, err, ErrNoCredit)

	require.NoError(t, a.Ack(1))
	_, err = b.Sent(4)
	assert.NoError(t, err)
}
