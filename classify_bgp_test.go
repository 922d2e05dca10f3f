package closbench

import (
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frrLine(t *testing.T, ts time.Time, rest string) string {
	t.Helper()
	return ts.In(time.Local).Format(frrTimestampLayout) + " " + rest
}

func TestBGPClassifierIntfDown(t *testing.T) {
	ts := time.Date(2024, 4, 30, 4, 9, 33, 947_000_000, time.Local)
	line := frrLine(t, ts, "ZEBRA: [SBFM4-2P25V] MESSAGE: ZEBRA_INTERFACE_DOWN L_1-eth1 vrf default(0)")

	c := BGPLogProfile{}.NewClassifier("L_1")
	rec, err := c.Classify(line)
	require.NoError(t, err)

	assert.Equal(t, IntfDown, rec.Kind)
	assert.Equal(t, "L_1-eth1", rec.Intf)
	assert.Equal(t, ts.UnixMilli(), rec.Time)
	assert.Nil(t, rec.Lengths)
}

func TestBGPClassifierUpdate(t *testing.T) {
	ts := time.Date(2024, 4, 30, 4, 9, 34, 12_000_000, time.Local)
	line := frrLine(t, ts,
		"BGP: [ABC12-3XY45] 172.16.0.1 rcvd UPDATE wlen 0 attrlen 30 alen 5")

	c := BGPLogProfile{}.NewClassifier("S-1_1")
	rec, err := c.Classify(line)
	require.NoError(t, err)

	assert.Equal(t, RouteUpdate, rec.Kind)
	assert.Equal(t, []int{0, 30, 5}, rec.Lengths)
	assert.Equal(t, ts.UnixMilli(), rec.Time)
}

func TestBGPClassifierQuietLine(t *testing.T) {
	ts := time.Now()
	line := frrLine(t, ts, "BGP: [QWERT-11111] neighbor 172.16.0.2 Up")

	c := BGPLogProfile{}.NewClassifier("T_1")
	rec, err := c.Classify(line)
	require.NoError(t, err)
	assert.Equal(t, NoEvent, rec.Kind)
}

func TestBGPClassifierMalformedTimestamp(t *testing.T) {
	c := BGPLogProfile{}.NewClassifier("T_1")

	for _, line := range []string{
		"",
		"short line",
		fmt.Sprintf("not/a/date %s rcvd UPDATE wlen 1 attrlen 1 alen 1", "12:00:00.000"),
	} {
		_, err := c.Classify(line)
		require.Error(t, err, line)

		var malformed *MalformedLogError
		require.True(t, errors.As(err, &malformed), line)
		assert.Equal(t, "T_1", malformed.Node)
	}
}

func TestBGPFixedHeaderLen(t *testing.T) {
	// Ethernet II + IPv4 + TCP + BGP framing around the logged lengths
	assert.Equal(t, 77, BGPLogProfile{}.FixedHeaderLen())
}
