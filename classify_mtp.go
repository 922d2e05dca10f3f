package closbench

// file classify_mtp.go classifies Meshed Tree Protocol switch log lines.
// MTP logs carry epoch-millisecond timestamps inside the message text, and
// the size of a failure update arrives on a separate line following the
// update itself, so classification is stateful within one log file.

import (
	"regexp"
	"strconv"
)

var (
	mtpIntfFailurePattern = regexp.MustCompile(`Detected a failure, shut down port (\S+) at time (\d+)`)
	mtpDisabledPattern    = regexp.MustCompile(`Disabled for port (\S+) due to a missing KEEP ALIVE at time (\d+)`)
	mtpUpdatePattern      = regexp.MustCompile(`FAILURE UPDATE message received at (\d+), on port (\S+)`)
	mtpMessageSizePattern = regexp.MustCompile(`Message size\s*=\s*(\d+)`)
	mtpEstablishedPattern = regexp.MustCompile(`Turn on for port (\S+) after received 3 KEEP ALIVE`)
)

// MTPLogProfile describes the MTP switch log trail. The logged message size
// is the complete on-wire size, so no fixed framing is added.
type MTPLogProfile struct{}

func (MTPLogProfile) NewClassifier(node string) Classifier {
	return &mtpClassifier{node: node}
}

func (MTPLogProfile) FixedHeaderLen() int { return 0 }

type mtpClassifier struct {
	node string

	// timestamp of the last failure update seen, adopted by the size line
	// that follows it
	lastUpdateTime int64
	haveUpdateTime bool
}

func (c *mtpClassifier) Classify(line string) (Record, error) {
	if m := mtpIntfFailurePattern.FindStringSubmatch(line); m != nil {
		ts, err := c.parseDigits(line, m[2])
		if err != nil {
			return Record{}, err
		}

		return Record{Kind: IntfDown, Time: ts, Intf: m[1]}, nil
	}

	if m := mtpDisabledPattern.FindStringSubmatch(line); m != nil {
		ts, err := c.parseDigits(line, m[2])
		if err != nil {
			return Record{}, err
		}

		return Record{Kind: IntfDisabled, Time: ts, Intf: m[1]}, nil
	}

	if m := mtpUpdatePattern.FindStringSubmatch(line); m != nil {
		ts, err := c.parseDigits(line, m[1])
		if err != nil {
			return Record{}, err
		}
		c.lastUpdateTime = ts
		c.haveUpdateTime = true

		return Record{Kind: RouteUpdate, Time: ts, Intf: m[2]}, nil
	}

	if m := mtpMessageSizePattern.FindStringSubmatch(line); m != nil {
		// a size with no preceding update has nothing to attribute it to
		if !c.haveUpdateTime {
			return Record{Kind: NoEvent}, nil
		}

		size, err := c.parseDigits(line, m[1])
		if err != nil {
			return Record{}, err
		}

		return Record{Kind: RouteUpdate, Time: c.lastUpdateTime, Lengths: []int{int(size)}}, nil
	}

	if m := mtpEstablishedPattern.FindStringSubmatch(line); m != nil {
		// the turn-on message logs no timestamp, so the record carries none
		return Record{Kind: IntfEstablished, Intf: m[1]}, nil
	}

	return Record{Kind: NoEvent}, nil
}

// parseDigits converts a captured run of digits, whether a millisecond
// timestamp or a byte count, flagging the source line on failure.
func (c *mtpClassifier) parseDigits(line, digits string) (int64, error) {
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, &MalformedLogError{Node: c.node, Line: line, Err: err}
	}

	return n, nil
}
