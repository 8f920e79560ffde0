package client_test

import (
	"net/http"
	"testing"

	"github.com/cloakhttp/cloak/client"
	"github.com/cloakhttp/cloak/profile"
)

func entries(h *client.OrderedHeader) []client.HeaderEntry {
	return h.Entries()
}

func TestOrderedHeader_AddPreservesOrderAndCase(t *testing.T) {
	h := &client.OrderedHeader{}
	h.Add("sec-ch-ua", `"Chromium";v="120"`)
	h.Add("User-Agent", "test")
	h.Add("accept", "*/*")

	got := entries(h)
	want := []string{"sec-ch-ua", "User-Agent", "accept"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, k := range want {
		if got[i].Key != k {
			t.Errorf("entry %d: got key %q, want %q", i, got[i].Key, k)
		}
	}
}

func TestOrderedHeader_SetReplacesInPlace(t *testing.T) {
	h := &client.OrderedHeader{}
	h.Add("accept", "*/*")
	h.Add("user-agent", "old")
	h.Add("accept-language", "en")
	h.Set("User-Agent", "new")

	got := entries(h)
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[1].Key != "User-Agent" || got[1].Value != "new" {
		t.Errorf("entry 1: got %q=%q, want User-Agent=new", got[1].Key, got[1].Value)
	}
}

func TestOrderedHeader_DelAndGet(t *testing.T) {
	h := &client.OrderedHeader{}
	h.Add("X-Token", "a")
	h.Add("accept", "*/*")
	h.Del("x-token")

	if h.Has("X-Token") {
		t.Error("expected X-Token removed")
	}
	if got := h.Get("ACCEPT"); got != "*/*" {
		t.Errorf("Get is case-insensitive: got %q", got)
	}
}

func TestOrderedHeader_ApplyToRequestKeepsRawCase(t *testing.T) {
	h := &client.OrderedHeader{}
	h.Add("sec-ch-ua-platform", `"Linux"`)

	req, _ := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	h.ApplyToRequest(req)

	if _, ok := req.Header["sec-ch-ua-platform"]; !ok {
		t.Errorf("raw lowercase key not present in map: %v", req.Header)
	}
	if _, ok := req.Header["Sec-Ch-Ua-Platform"]; ok {
		t.Error("canonicalised key should not be present")
	}
}

func TestOrderHeaders_TemplateTwoPhase(t *testing.T) {
	h := &client.OrderedHeader{}
	h.Add("c", "3")
	h.Add("b", "2")
	h.Add("a", "1")

	tmpl := profile.HeaderTemplate{Order: []string{"a", "b"}}
	out := client.OrderHeaders(h, tmpl)

	got := entries(out)
	want := []struct{ k, v string }{{"a", "1"}, {"b", "2"}, {"c", "3"}}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Key != w.k || got[i].Value != w.v {
			t.Errorf("entry %d: got %q=%q, want %q=%q", i, got[i].Key, got[i].Value, w.k, w.v)
		}
	}
}

func TestOrderHeaders_TemplateCasingWins(t *testing.T) {
	h := &client.OrderedHeader{}
	h.Add("USER-AGENT", "x")

	out := client.OrderHeaders(h, profile.HeaderTemplate{Order: []string{"user-agent"}})
	if got := entries(out)[0].Key; got != "user-agent" {
		t.Errorf("template casing should win: got %q", got)
	}

	out = client.OrderHeaders(h, profile.HeaderTemplate{Order: []string{"user-agent"}, PreserveCase: true})
	if got := entries(out)[0].Key; got != "USER-AGENT" {
		t.Errorf("caller casing should win with PreserveCase: got %q", got)
	}
}

func TestOrderHeaders_UnknownHeadersNeverDropped(t *testing.T) {
	h := &client.OrderedHeader{}
	h.Add("x-custom-1", "a")
	h.Add("accept", "*/*")
	h.Add("x-custom-2", "b")

	out := client.OrderHeaders(h, profile.HeaderTemplate{Order: []string{"accept"}})
	got := entries(out)
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[0].Key != "accept" {
		t.Errorf("template header first: got %q", got[0].Key)
	}
	if got[1].Key != "x-custom-1" || got[2].Key != "x-custom-2" {
		t.Errorf("unknown headers keep insertion order: got %q, %q", got[1].Key, got[2].Key)
	}
}

func TestOrderHeaders_DuplicatesKeepMultiplicity(t *testing.T) {
	h := &client.OrderedHeader{}
	h.Add("set-value", "1")
	h.Add("set-value", "2")

	out := client.OrderHeaders(h, profile.HeaderTemplate{Order: []string{"set-value"}})
	got := entries(out)
	if len(got) != 2 || got[0].Value != "1" || got[1].Value != "2" {
		t.Errorf("duplicates mishandled: %v", got)
	}
}

func TestFromProfileHeaders(t *testing.T) {
	prof, err := profile.Lookup(profile.Chrome120)
	if err != nil {
		t.Fatal(err)
	}
	h := client.FromProfileHeaders(prof.DefaultHeaders)
	if h.Len() != len(prof.DefaultHeaders) {
		t.Fatalf("got %d entries, want %d", h.Len(), len(prof.DefaultHeaders))
	}
	for i, e := range entries(h) {
		if e.Key != prof.DefaultHeaders[i].Name {
			t.Errorf("entry %d: got %q, want %q", i, e.Key, prof.DefaultHeaders[i].Name)
		}
	}
}
