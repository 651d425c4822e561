package std

import (
	"bufio"
	"errors"
	"net"

	"github.com/golang/snappy"
	pkgerrors "github.com/pkg/errors"

	"github.com/ignacioSepam/sbmp/datagram"
	"github.com/ignacioSepam/sbmp/endpoint"
)

// DataType is the datagram type code the bridge carries application
// bytes under. Application type codes below 0xF0 are
// unreserved (see datagram.Type).
const DataType datagram.Type = 0x01

// ErrBridgeHandshakeFailed is returned when StartHandshake could not even
// queue its first write.
var ErrBridgeHandshakeFailed = errors.New("std: bridge handshake send failed")

// ErrBridgeSendFailed is returned when a data datagram was not accepted in
// full by the underlying endpoint.
var ErrBridgeSendFailed = errors.New("std: bridge send failed")

// snappyConn layers snappy framing onto the tunnel side of a bridge.
// Embedding net.Conn gives it Close/LocalAddr/RemoteAddr/deadline handling
// for free; only Read and Write need to route through snappy.
type snappyConn struct {
	net.Conn
	w *snappy.Writer
	r *snappy.Reader
}

func newSnappyConn(conn net.Conn) *snappyConn {
	return &snappyConn{
		Conn: conn,
		w:    snappy.NewBufferedWriter(conn),
		r:    snappy.NewReader(conn),
	}
}

func (c *snappyConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func (c *snappyConn) Write(p []byte) (int, error) {
	if _, err := c.w.Write(p); err != nil {
		return 0, pkgerrors.WithStack(err)
	}
	if err := c.w.Flush(); err != nil {
		return 0, pkgerrors.WithStack(err)
	}
	return len(p), nil
}

type bridgeEvent struct {
	fromLocal bool
	data      []byte
	err       error
}

// pumpReads blocks reading conn in chunks, forwarding each chunk (and the
// terminal error) onto events. Grounded on the teacher's std/copy.go Pipe,
// which ran one such loop per direction; this one only ever produces
// events rather than writing directly to the peer, since the peer side
// here is an endpoint.Endpoint that must not be touched concurrently.
func pumpReads(conn net.Conn, events chan<- bridgeEvent, fromLocal bool) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			events <- bridgeEvent{fromLocal: fromLocal, data: chunk}
		}
		if err != nil {
			events <- bridgeEvent{fromLocal: fromLocal, err: err}
			return
		}
	}
}

// Bridge couples one local net.Conn (the application or target side) with
// one SBMP endpoint driven over remote (the tunnel side), copying bytes in
// both directions until either side closes or errors.
//
// When compress is true, remote is wrapped in snappy framing before the
// endpoint ever touches it — SBMP's own framing is transport-agnostic, so
// the compressor sits strictly below it on the wire, exactly the role the
// teacher's CompStream played under a kcp.UDPSession.
//
// When initiate is true, this end starts the handshake and, on the first
// bytes read from local, allocates the data session itself (the client
// role). When false, it waits for the peer's handshake and learns the
// data session from the first inbound DATA datagram (the server role);
// any local bytes arriving before that session is known are queued.
//
// Every endpoint method call below happens on this single goroutine — the
// two pumpReads goroutines only ever push byte slices onto a channel, so
// the endpoint itself never sees concurrent access, matching the
// single-threaded dispatch spec.md §5 requires of the protocol core.
func Bridge(local, remote net.Conn, initiate, compress bool, opts ...endpoint.Option) error {
	defer local.Close()
	defer remote.Close()

	if compress {
		remote = newSnappyConn(remote)
	}

	w := bufio.NewWriter(remote)
	events := make(chan bridgeEvent, 64)

	var session uint16
	var sessionOK bool
	var pending [][]byte

	allOpts := append(append([]endpoint.Option{}, opts...), endpoint.WithDefaultHandler(func(dg *datagram.Datagram) {
		if dg.Type != DataType {
			return
		}
		if !sessionOK {
			session, sessionOK = dg.Session, true
		}
		if len(dg.Body) > 0 {
			local.Write(dg.Body)
		}
	}))
	ep := endpoint.NewAlloc(1<<16, w, allOpts...)

	go pumpReads(local, events, true)
	go pumpReads(remote, events, false)

	if initiate {
		if !ep.StartHandshake() {
			return ErrBridgeHandshakeFailed
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	flushPending := func() error {
		for _, p := range pending {
			if n := ep.SendResponse(DataType, p, session); n != len(p) {
				return ErrBridgeSendFailed
			}
		}
		pending = nil
		return w.Flush()
	}

	for ev := range events {
		if ev.err != nil {
			return ev.err
		}
		if ev.fromLocal {
			if !sessionOK {
				if initiate {
					session, sessionOK = ep.NextSession(), true
				} else {
					pending = append(pending, ev.data)
					continue
				}
			}
			if n := ep.SendResponse(DataType, ev.data, session); n != len(ev.data) {
				return ErrBridgeSendFailed
			}
			if err := w.Flush(); err != nil {
				return err
			}
			continue
		}

		ep.FeedBuffer(ev.data)
		if err := w.Flush(); err != nil {
			return err
		}
		if sessionOK && len(pending) > 0 {
			if err := flushPending(); err != nil {
				return err
			}
		}
	}
	return nil
}
