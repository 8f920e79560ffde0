package client

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func encodedResponse(t *testing.T, encoding string, plain []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		w := gzip.NewWriter(&buf)
		w.Write(plain)
		w.Close()
	case "br":
		w := brotli.NewWriter(&buf)
		w.Write(plain)
		w.Close()
	case "zstd":
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(plain)
		w.Close()
	default:
		buf.Write(plain)
	}
	h := http.Header{}
	if encoding != "" {
		h.Set("Content-Encoding", encoding)
		h.Set("Content-Length", "123")
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        h,
		Body:          io.NopCloser(&buf),
		ContentLength: int64(buf.Len()),
	}
}

func TestDecompressResponse(t *testing.T) {
	plain := []byte(strings.Repeat("fingerprint payload ", 50))

	for _, enc := range []string{"gzip", "br", "zstd"} {
		t.Run(enc, func(t *testing.T) {
			resp := encodedResponse(t, enc, plain)
			if err := decompressResponse(resp); err != nil {
				t.Fatalf("decompressResponse: %v", err)
			}
			got, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("read decoded body: %v", err)
			}
			resp.Body.Close()
			if !bytes.Equal(got, plain) {
				t.Errorf("decoded body mismatch (%d vs %d bytes)", len(got), len(plain))
			}
			if resp.Header.Get("Content-Encoding") != "" {
				t.Error("Content-Encoding should be cleared after decoding")
			}
			if resp.ContentLength != -1 {
				t.Errorf("ContentLength should be -1, got %d", resp.ContentLength)
			}
			if !resp.Uncompressed {
				t.Error("Uncompressed flag should be set")
			}
		})
	}
}

func TestDecompressResponse_IdentityUntouched(t *testing.T) {
	plain := []byte("plain body")
	resp := encodedResponse(t, "", plain)
	if err := decompressResponse(resp); err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(got, plain) {
		t.Errorf("identity body changed: %q", got)
	}
	if resp.Uncompressed {
		t.Error("identity responses must not be flagged as decoded")
	}
}

func TestDecompressResponse_UnknownEncodingPassesThrough(t *testing.T) {
	resp := encodedResponse(t, "", []byte("compressed-with-sdch"))
	resp.Header.Set("Content-Encoding", "sdch")
	if err := decompressResponse(resp); err != nil {
		t.Fatal(err)
	}
	if resp.Header.Get("Content-Encoding") != "sdch" {
		t.Error("unknown encoding header must survive")
	}
}
