package closbench

// file classify_bgp.go classifies FRR BGP daemon log lines. Every line
// carries a leading local-time timestamp; the events of interest are the
// zebra interface-down notification and received UPDATE messages whose
// variable-length components the daemon logs piecewise.

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// BGP UPDATE framing: Ethernet II, IPv4, and TCP headers plus the 19-byte
// BGP header and the 4 bytes of withdraw-length and path-attribute-length
// fields, none of which appear in the logged component lengths.
const (
	ethIIHeaderLen = 14
	ipv4HeaderLen  = 20
	tcpHeaderLen   = 20
	bgpHeaderLen   = 23
)

// frrTimestampLayout matches the leading timestamp of every FRR log line,
// e.g. "2024/04/30 04:09:33.947". FRR logs in the machine's local time.
const frrTimestampLayout = "2006/01/02 15:04:05.000"

// bgpIntfFailureMarker is the zebra message identifying a local interface
// loss; the regex then extracts which interface went down.
const bgpIntfFailureMarker = "[SBFM4-2P25V] MESSAGE: ZEBRA_INTERFACE_DOWN"

var (
	bgpIntfFailurePattern = regexp.MustCompile(`ZEBRA_INTERFACE_DOWN\s+(\S+)\s+vrf`)
	bgpRecvUpdatePattern  = regexp.MustCompile(`rcvd\s+UPDATE.*wlen\s+(\d+)\s+attrlen\s+(\d+)\s+alen\s+(\d+)`)
)

// BGPLogProfile describes the FRR BGP log trail.
type BGPLogProfile struct{}

func (BGPLogProfile) NewClassifier(node string) Classifier {
	return &bgpClassifier{node: node}
}

func (BGPLogProfile) FixedHeaderLen() int {
	return ethIIHeaderLen + ipv4HeaderLen + tcpHeaderLen + bgpHeaderLen
}

type bgpClassifier struct {
	node string
}

func (c *bgpClassifier) Classify(line string) (Record, error) {
	ts, err := c.timestamp(line)
	if err != nil {
		return Record{}, err
	}

	if strings.Contains(line, bgpIntfFailureMarker) {
		rec := Record{Kind: IntfDown, Time: ts}
		if m := bgpIntfFailurePattern.FindStringSubmatch(line); m != nil {
			rec.Intf = m[1]
		}

		return rec, nil
	}

	if m := bgpRecvUpdatePattern.FindStringSubmatch(line); m != nil {
		lengths := make([]int, 0, 3)
		for _, field := range m[1:] {
			n, cerr := strconv.Atoi(field)
			if cerr != nil {
				return Record{}, &MalformedLogError{Node: c.node, Line: line, Err: cerr}
			}
			lengths = append(lengths, n)
		}

		return Record{Kind: RouteUpdate, Time: ts, Lengths: lengths}, nil
	}

	return Record{Kind: NoEvent, Time: ts}, nil
}

// timestamp parses the fixed-width local-time prefix of an FRR log line
// into Unix milliseconds.
func (c *bgpClassifier) timestamp(line string) (int64, error) {
	if len(line) < len(frrTimestampLayout) {
		return 0, &MalformedLogError{Node: c.node, Line: line,
			Err: errors.New("line too short to carry a timestamp")}
	}

	ts, err := time.ParseInLocation(frrTimestampLayout, line[:len(frrTimestampLayout)], time.Local)
	if err != nil {
		return 0, &MalformedLogError{Node: c.node, Line: line, Err: err}
	}

	return ts.UnixMilli(), nil
}
