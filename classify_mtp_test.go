package closbench

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMTPClassifierIntfDown(t *testing.T) {
	c := MTPLogProfile{}.NewClassifier("L_1")

	rec, err := c.Classify("Detected a failure, shut down port L_1-eth1 at time 1742490729154")
	require.NoError(t, err)

	assert.Equal(t, IntfDown, rec.Kind)
	assert.Equal(t, "L_1-eth1", rec.Intf)
	assert.Equal(t, int64(1742490729154), rec.Time)
}

func TestMTPClassifierDisabled(t *testing.T) {
	c := MTPLogProfile{}.NewClassifier("T_1")

	rec, err := c.Classify("--------Disabled for port T_1-eth1 due to a missing KEEP ALIVE at time 1742490729396--------")
	require.NoError(t, err)

	assert.Equal(t, IntfDisabled, rec.Kind)
	assert.Equal(t, "T_1-eth1", rec.Intf)
	assert.Equal(t, int64(1742490729396), rec.Time)
}

func TestMTPClassifierUpdateThenSize(t *testing.T) {
	c := MTPLogProfile{}.NewClassifier("L_3")

	rec, err := c.Classify("FAILURE UPDATE message received at 1742490729396, on port L_3-eth1")
	require.NoError(t, err)
	assert.Equal(t, RouteUpdate, rec.Kind)
	assert.Equal(t, "L_3-eth1", rec.Intf)
	assert.Equal(t, int64(1742490729396), rec.Time)
	assert.Nil(t, rec.Lengths)

	// the size arrives on its own line and adopts the update's timestamp
	rec, err = c.Classify("Message size = 20")
	require.NoError(t, err)
	assert.Equal(t, RouteUpdate, rec.Kind)
	assert.Equal(t, int64(1742490729396), rec.Time)
	assert.Equal(t, []int{20}, rec.Lengths)
}

func TestMTPClassifierOverflowDigits(t *testing.T) {
	c := MTPLogProfile{}.NewClassifier("L_3")

	// both the timestamp and the byte count run through the same digit
	// parse; values past int64 fail with the offending line attached
	var malformed *MalformedLogError

	_, err := c.Classify("Detected a failure, shut down port L_3-eth1 at time 99999999999999999999")
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "L_3", malformed.Node)

	_, err = c.Classify("FAILURE UPDATE message received at 1742490729396, on port L_3-eth1")
	require.NoError(t, err)
	_, err = c.Classify("Message size = 99999999999999999999")
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Line, "Message size")
}

func TestMTPClassifierSizeWithoutUpdate(t *testing.T) {
	c := MTPLogProfile{}.NewClassifier("L_3")

	rec, err := c.Classify("Message size = 20")
	require.NoError(t, err)
	assert.Equal(t, NoEvent, rec.Kind)
}

func TestMTPClassifierEstablished(t *testing.T) {
	c := MTPLogProfile{}.NewClassifier("S-1_1")

	rec, err := c.Classify("Turn on for port S-1_1-eth2 after received 3 KEEP ALIVE")
	require.NoError(t, err)
	assert.Equal(t, IntfEstablished, rec.Kind)
	assert.Equal(t, "S-1_1-eth2", rec.Intf)
	assert.Zero(t, rec.Time)
}

func TestMTPClassifierQuietLine(t *testing.T) {
	c := MTPLogProfile{}.NewClassifier("T_1")

	rec, err := c.Classify("Hello message sent on all ports")
	require.NoError(t, err)
	assert.Equal(t, NoEvent, rec.Kind)
}

func TestMTPFixedHeaderLen(t *testing.T) {
	// the logged message size is already the complete on-wire size
	assert.Zero(t, MTPLogProfile{}.FixedHeaderLen())
}
