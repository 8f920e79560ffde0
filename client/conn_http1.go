package client

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// WriteHTTP1Request serialises req onto w with full control over header
// order and casing.  net/http's Request.Write cannot be used here: it emits
// headers from an unordered map in canonicalised case, which destroys the
// fingerprint this whole layer exists to preserve.
//
// Host is written first (as browsers do), then the ordered header sequence
// verbatim, then Content-Length when a sized body is present.  The WebSocket
// adapter reuses this writer for its upgrade request so the handshake
// carries the same header fingerprint as ordinary requests.
func WriteHTTP1Request(w io.Writer, req *http.Request, ordered *OrderedHeader) error {
	if ordered == nil {
		ordered = FromHTTPHeader(req.Header)
	}

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", req.Method, req.URL.RequestURI())
	fmt.Fprintf(&b, "Host: %s\r\n", host)

	wroteLength := false
	for _, e := range ordered.Entries() {
		lower := strings.ToLower(e.Key)
		if lower == "host" {
			continue
		}
		if lower == "content-length" {
			wroteLength = true
		}
		fmt.Fprintf(&b, "%s: %s\r\n", e.Key, e.Value)
	}

	body := req.Body
	length := req.ContentLength
	if body != nil && length < 0 {
		// Unknown length: buffer to size it.  Chunked encoding would change
		// the request shape relative to a browser form/XHR post, so a sized
		// body is preferred.
		data, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("buffer request body: %w", err)
		}
		_ = body.Close()
		body = io.NopCloser(strings.NewReader(string(data)))
		length = int64(len(data))
	}
	if body != nil && !wroteLength {
		b.WriteString("Content-Length: " + strconv.FormatInt(length, 10) + "\r\n")
	}
	b.WriteString("\r\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if body != nil {
		if _, err := io.Copy(w, body); err != nil {
			return err
		}
		_ = body.Close()
	}
	return nil
}
