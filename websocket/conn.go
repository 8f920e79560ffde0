package websocket

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn is an upgraded WebSocket connection in client mode: outgoing frames
// are masked, incoming frames are expected unmasked.  Reads and writes may
// run concurrently with each other, but at most one reader and one writer
// at a time.
type Conn struct {
	raw net.Conn

	// br drains handshake bytes buffered alongside the 101 response before
	// reading from the socket.
	br io.Reader

	// wmu serialises frame writes, including the pong replies the read path
	// emits for incoming pings.
	wmu sync.Mutex

	subprotocol string

	closeOnce sync.Once
}

func newConn(raw net.Conn, br io.Reader, subprotocol string) *Conn {
	return &Conn{raw: raw, br: br, subprotocol: subprotocol}
}

// Subprotocol returns the server-selected subprotocol, or "".
func (c *Conn) Subprotocol() string { return c.subprotocol }

// LocalAddr returns the local endpoint of the underlying connection.
func (c *Conn) LocalAddr() net.Addr { return c.raw.LocalAddr() }

// RemoteAddr returns the remote endpoint of the underlying connection.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// Read satisfies io.Reader for the frame machinery: handshake bytes that
// arrived buffered with the 101 response are drained before the socket.
func (c *Conn) Read(p []byte) (int, error) { return c.br.Read(p) }

// Write satisfies io.Writer for the frame machinery under the write lock,
// so control-frame replies interleave safely with data writes.
func (c *Conn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.raw.Write(p)
}

// ReadMessage blocks for the next data message, transparently answering
// ping frames and surfacing a close frame as ErrClosed-wrapped error from
// the frame layer.
func (c *Conn) ReadMessage() (ws.OpCode, []byte, error) {
	data, op, err := wsutil.ReadServerData(c)
	if err != nil {
		return op, nil, fmt.Errorf("websocket: read message: %w", err)
	}
	return op, data, nil
}

// WriteMessage sends one masked data message.
func (c *Conn) WriteMessage(op ws.OpCode, p []byte) error {
	if err := wsutil.WriteClientMessage(c, op, p); err != nil {
		return fmt.Errorf("websocket: write message: %w", err)
	}
	return nil
}

// WriteText sends p as a text message.
func (c *Conn) WriteText(p []byte) error { return c.WriteMessage(ws.OpText, p) }

// WriteBinary sends p as a binary message.
func (c *Conn) WriteBinary(p []byte) error { return c.WriteMessage(ws.OpBinary, p) }

// Ping sends a masked ping frame.
func (c *Conn) Ping(p []byte) error {
	if err := wsutil.WriteClientMessage(c, ws.OpPing, p); err != nil {
		return fmt.Errorf("websocket: ping: %w", err)
	}
	return nil
}

// SetReadDeadline bounds the next read on the underlying connection.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.raw.SetReadDeadline(t) }

// SetWriteDeadline bounds the next write on the underlying connection.
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.raw.SetWriteDeadline(t) }

// Close performs a best-effort closing handshake (masked close frame with
// the given status) and then tears the connection down.  Safe to call more
// than once.
func (c *Conn) Close(code ws.StatusCode, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		frame := ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason))
		frame = ws.MaskFrameInPlace(frame)
		c.wmu.Lock()
		writeErr := ws.WriteFrame(c.raw, frame)
		c.wmu.Unlock()
		closeErr := c.raw.Close()
		if writeErr != nil {
			err = fmt.Errorf("websocket: write close frame: %w", writeErr)
		} else if closeErr != nil {
			err = fmt.Errorf("websocket: close: %w", closeErr)
		}
	})
	return err
}
