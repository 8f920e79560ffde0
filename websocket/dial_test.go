package websocket_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/cloakhttp/cloak/client"
	"github.com/cloakhttp/cloak/profile"
	"github.com/cloakhttp/cloak/websocket"
)

func newDialer(t *testing.T) (*websocket.Dialer, *client.Connector) {
	t.Helper()
	cn := client.NewConnector(client.ConnectorOptions{})
	t.Cleanup(cn.Close)
	return &websocket.Dialer{Connector: cn, HandshakeTimeout: 5 * time.Second}, cn
}

func listen(t *testing.T, handler func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handler(conn)
		}
	}()
	return ln.Addr().String()
}

func TestDial_UpgradeAndEcho(t *testing.T) {
	addr := listen(t, func(conn net.Conn) {
		defer conn.Close()
		if _, err := ws.Upgrade(conn); err != nil {
			t.Errorf("server upgrade: %v", err)
			return
		}
		for {
			data, op, err := wsutil.ReadClientData(conn)
			if err != nil {
				return
			}
			if err := wsutil.WriteServerMessage(conn, op, data); err != nil {
				return
			}
		}
	})

	d, cn := newDialer(t)
	prof := profile.MustLookup(profile.Chrome120)
	c, resp, err := d.Dial(context.Background(), "ws://"+addr+"/chat", prof, client.EgressIdentity{}, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close(ws.StatusNormalClosure, "done")

	if resp.StatusCode != 101 {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	// Upgrade connections never enter the pool.
	if cn.Pool().Len() != 0 {
		t.Errorf("upgrade connection leaked into pool, len=%d", cn.Pool().Len())
	}

	if err := c.WriteText([]byte("hello")); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	op, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if op != ws.OpText || string(data) != "hello" {
		t.Errorf("echo: got op=%v data=%q", op, data)
	}
}

func TestDial_HandshakeHeadersOnWire(t *testing.T) {
	headers := make(chan []string, 1)
	addr := listen(t, func(conn net.Conn) {
		defer conn.Close()
		br := bufio.NewReader(conn)
		var lines []string
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				break
			}
			lines = append(lines, line)
		}
		headers <- lines
		io.WriteString(conn, "HTTP/1.1 403 Forbidden\r\nContent-Length: 0\r\n\r\n")
	})

	d, _ := newDialer(t)
	prof := profile.MustLookup(profile.Chrome120)
	_, _, err := d.Dial(context.Background(), "ws://"+addr+"/", prof, client.EgressIdentity{}, nil)
	if err == nil {
		t.Fatal("expected rejection")
	}

	lines := <-headers
	var haveUpgrade, haveKey, haveVersion, haveUA bool
	for _, l := range lines {
		lower := strings.ToLower(l)
		switch {
		case strings.HasPrefix(lower, "upgrade: websocket"):
			haveUpgrade = true
		case strings.HasPrefix(lower, "sec-websocket-key: "):
			haveKey = true
		case strings.HasPrefix(lower, "sec-websocket-version: 13"):
			haveVersion = true
		case strings.HasPrefix(lower, "user-agent: ") && strings.Contains(l, "Chrome/120"):
			haveUA = true
		}
	}
	if !haveUpgrade || !haveKey || !haveVersion {
		t.Errorf("handshake headers incomplete:\n%s", strings.Join(lines, "\n"))
	}
	if !haveUA {
		t.Errorf("profile user-agent missing from handshake:\n%s", strings.Join(lines, "\n"))
	}
}

func TestDial_RejectionSurfacesStatus(t *testing.T) {
	addr := listen(t, func(conn net.Conn) {
		defer conn.Close()
		br := bufio.NewReader(conn)
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			if strings.TrimRight(line, "\r\n") == "" {
				break
			}
		}
		io.WriteString(conn, "HTTP/1.1 403 Forbidden\r\nContent-Length: 6\r\n\r\ndenied")
	})

	d, cn := newDialer(t)
	prof := profile.MustLookup(profile.Chrome120)
	_, resp, err := d.Dial(context.Background(), "ws://"+addr+"/", prof, client.EgressIdentity{}, nil)

	rej, ok := err.(*websocket.HandshakeRejectedError)
	if !ok {
		t.Fatalf("expected HandshakeRejectedError, got %T: %v", err, err)
	}
	if rej.StatusCode != 403 {
		t.Errorf("status: got %d, want 403", rej.StatusCode)
	}
	if string(rej.Body) != "denied" {
		t.Errorf("body: got %q", rej.Body)
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Error("raw response should accompany the rejection")
	}
	if cn.Pool().Len() != 0 {
		t.Errorf("rejected connection leaked into pool, len=%d", cn.Pool().Len())
	}
}

func TestDial_CallerSuppliedKey(t *testing.T) {
	// Sample nonce and accept value from RFC 6455 section 1.3.
	const sampleKey = "dGhlIHNhbXBsZSBub25jZQ=="
	const sampleAccept = "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="

	keyCh := make(chan string, 1)
	addr := listen(t, func(conn net.Conn) {
		defer conn.Close()
		br := bufio.NewReader(conn)
		var got string
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				break
			}
			if v, ok := strings.CutPrefix(line, "Sec-WebSocket-Key: "); ok {
				got = v
			}
		}
		keyCh <- got
		io.WriteString(conn, "HTTP/1.1 101 Switching Protocols\r\n"+
			"Upgrade: websocket\r\nConnection: Upgrade\r\n"+
			"Sec-WebSocket-Accept: "+sampleAccept+"\r\n\r\n")
	})

	d, _ := newDialer(t)
	d.Key = sampleKey
	prof := profile.MustLookup(profile.Chrome120)
	c, _, err := d.Dial(context.Background(), "ws://"+addr+"/", prof, client.EgressIdentity{}, nil)
	if err != nil {
		t.Fatalf("Dial with pinned key: %v", err)
	}
	defer c.Close(ws.StatusNormalClosure, "done")

	if got := <-keyCh; got != sampleKey {
		t.Errorf("wire key: got %q, want %q", got, sampleKey)
	}
}

func TestDial_InvalidCallerKey(t *testing.T) {
	d, _ := newDialer(t)
	d.Key = "not base64"
	prof := profile.MustLookup(profile.Chrome120)
	if _, _, err := d.Dial(context.Background(), "ws://127.0.0.1:1/", prof, client.EgressIdentity{}, nil); err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestDial_BadAcceptKey(t *testing.T) {
	addr := listen(t, func(conn net.Conn) {
		defer conn.Close()
		br := bufio.NewReader(conn)
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			if strings.TrimRight(line, "\r\n") == "" {
				break
			}
		}
		io.WriteString(conn, "HTTP/1.1 101 Switching Protocols\r\n"+
			"Upgrade: websocket\r\nConnection: Upgrade\r\n"+
			"Sec-WebSocket-Accept: bm90LXRoZS1yaWdodC1rZXk=\r\n\r\n")
	})

	d, _ := newDialer(t)
	prof := profile.MustLookup(profile.Chrome120)
	_, _, err := d.Dial(context.Background(), "ws://"+addr+"/", prof, client.EgressIdentity{}, nil)
	rej, ok := err.(*websocket.HandshakeRejectedError)
	if !ok {
		t.Fatalf("expected HandshakeRejectedError, got %T: %v", err, err)
	}
	if !strings.Contains(rej.Reason, "Sec-WebSocket-Accept") {
		t.Errorf("reason: %q", rej.Reason)
	}
}

func TestDial_UnsupportedScheme(t *testing.T) {
	d, _ := newDialer(t)
	prof := profile.MustLookup(profile.Chrome120)
	if _, _, err := d.Dial(context.Background(), "https://example.com/", prof, client.EgressIdentity{}, nil); err == nil {
		t.Error("expected error for non-ws scheme")
	}
}
