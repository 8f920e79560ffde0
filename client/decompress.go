package client

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// decompressResponse replaces resp.Body with a decoding reader when the
// server applied a Content-Encoding this layer advertises (gzip, deflate,
// br, zstd).  Transparent decoding is done here rather than by the
// transports because both transports run with compression support disabled:
// the Accept-Encoding header belongs to the emulation profile, not to the
// transport.
//
// On success the Content-Encoding and Content-Length headers are cleared,
// matching net/http's behaviour for its own transparent gzip path.  Unknown
// encodings pass through untouched so callers can handle them.
func decompressResponse(resp *http.Response) error {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if enc == "" || enc == "identity" {
		return nil
	}

	var (
		r   io.Reader
		err error
	)
	switch enc {
	case "gzip":
		r, err = gzip.NewReader(resp.Body)
	case "deflate":
		r = flate.NewReader(resp.Body)
	case "br":
		r = brotli.NewReader(resp.Body)
	case "zstd":
		var d *zstd.Decoder
		d, err = zstd.NewReader(resp.Body, zstd.WithDecoderConcurrency(1))
		if d != nil {
			r = d.IOReadCloser()
		}
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("client: init %s decoder: %w", enc, err)
	}

	resp.Body = &decodedBody{decoded: r, underlying: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// decodedBody reads through the decoder but closes the underlying body, so
// the HTTP/1 exchange lock is released even when the decoded stream is
// abandoned early.
type decodedBody struct {
	decoded    io.Reader
	underlying io.ReadCloser
}

func (b *decodedBody) Read(p []byte) (int, error) { return b.decoded.Read(p) }

func (b *decodedBody) Close() error {
	if c, ok := b.decoded.(io.Closer); ok {
		_ = c.Close()
	}
	return b.underlying.Close()
}
