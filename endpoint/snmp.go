package endpoint

import (
	"strconv"
	"sync/atomic"
)

// Snmp holds atomic counters for one endpoint's lifetime activity, grounded
// on github.com/xtaci/kcp-go/v5's DefaultSnmp counters (sess.go:
// atomic.AddUint64(&DefaultSnmp.InCsumErrors, 1), etc.) and read the same
// way via Header/ToSlice for a CSV dump (see sbmpstat.Logger, adapted from
// the teacher's std/snmp.go). Safe for concurrent reads while the owning
// endpoint's single feeder goroutine updates it.
type Snmp struct {
	FramesDelivered    uint64
	ProtocolErrors     uint64
	HandshakesStarted  uint64
	HandshakesOK       uint64
	HandshakeConflicts uint64
}

func (s *Snmp) addFrameDelivered()    { atomic.AddUint64(&s.FramesDelivered, 1) }
func (s *Snmp) addProtocolError()     { atomic.AddUint64(&s.ProtocolErrors, 1) }
func (s *Snmp) addHandshakeStarted()  { atomic.AddUint64(&s.HandshakesStarted, 1) }
func (s *Snmp) addHandshakeOK()       { atomic.AddUint64(&s.HandshakesOK, 1) }
func (s *Snmp) addHandshakeConflict() { atomic.AddUint64(&s.HandshakeConflicts, 1) }

// Header returns the CSV column names, in the same order as ToSlice.
func (s *Snmp) Header() []string {
	return []string{
		"FramesDelivered",
		"ProtocolErrors",
		"HandshakesStarted",
		"HandshakesOK",
		"HandshakeConflicts",
	}
}

// ToSlice returns a point-in-time snapshot of every counter as strings, for
// direct use with encoding/csv.Writer.Write.
func (s *Snmp) ToSlice() []string {
	return []string{
		strconv.FormatUint(atomic.LoadUint64(&s.FramesDelivered), 10),
		strconv.FormatUint(atomic.LoadUint64(&s.ProtocolErrors), 10),
		strconv.FormatUint(atomic.LoadUint64(&s.HandshakesStarted), 10),
		strconv.FormatUint(atomic.LoadUint64(&s.HandshakesOK), 10),
		strconv.FormatUint(atomic.LoadUint64(&s.HandshakeConflicts), 10),
	}
}
