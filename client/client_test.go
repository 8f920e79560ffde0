package client_test

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/cloakhttp/cloak/client"
	"github.com/cloakhttp/cloak/profile"
)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	c, err := client.New(client.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestClient_DefaultHeadersApplied(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept-Language")
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := newTestClient(t)
	resp, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	prof := profile.MustLookup(profile.Chrome120)
	if gotUA != prof.UserAgent() {
		t.Errorf("user-agent: got %q, want profile default", gotUA)
	}
	if gotAccept == "" {
		t.Error("accept-language default was not sent")
	}
}

func TestClient_CallerHeaderOverridesDefault(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c := newTestClient(t)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("User-Agent", "custom-agent/1.0")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if gotUA != "custom-agent/1.0" {
		t.Errorf("caller header should win: got %q", gotUA)
	}
}

func TestClient_TransparentGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		io.WriteString(gz, "decoded payload")
		gz.Close()
	}))
	defer srv.Close()

	c := newTestClient(t)
	resp, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "decoded payload" {
		t.Errorf("body: got %q", body)
	}
	if resp.Header.Get("Content-Encoding") != "" {
		t.Error("Content-Encoding should be cleared")
	}
}

func TestClient_CookieJarRoundTrip(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/set":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123", Path: "/"})
		default:
			gotCookie = r.Header.Get("Cookie")
		}
	}))
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	c, err := client.New(client.Options{Jar: jar})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	resp, err := c.Get(context.Background(), srv.URL+"/set")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = c.Get(context.Background(), srv.URL+"/read")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if gotCookie != "session=abc123" {
		t.Errorf("cookie replay: got %q", gotCookie)
	}
}

func TestClient_SetProfileSwitchesWithoutPurge(t *testing.T) {
	c := newTestClient(t)
	if c.Profile().ID != profile.Chrome120 {
		t.Fatalf("default profile: %s", c.Profile().ID)
	}
	if err := c.SetProfile(profile.Firefox133); err != nil {
		t.Fatal(err)
	}
	if c.Profile().ID != profile.Firefox133 {
		t.Errorf("active profile: %s", c.Profile().ID)
	}
	if err := c.SetProfile("netscape_4"); err == nil {
		t.Error("unknown profile must be rejected")
	}
	// A rejected switch leaves the active profile untouched.
	if c.Profile().ID != profile.Firefox133 {
		t.Errorf("profile changed after rejected switch: %s", c.Profile().ID)
	}
}

func TestClient_CloneSharesPool(t *testing.T) {
	c := newTestClient(t)
	clone := c.Clone()
	if clone.Connector() != c.Connector() {
		t.Error("clone must share the connector")
	}
	if err := clone.SetProfile(profile.Safari17); err != nil {
		t.Fatal(err)
	}
	if c.Profile().ID == clone.Profile().ID {
		t.Error("clone profile change leaked into the original")
	}
}

func TestClient_UnsupportedScheme(t *testing.T) {
	c := newTestClient(t)
	req, err := http.NewRequest(http.MethodGet, "ftp://example.com/", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Do(req); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}
