package client_test

import (
	"bytes"
	"errors"
	"testing"

	"golang.org/x/net/http2"

	"github.com/cloakhttp/cloak/client"
	"github.com/cloakhttp/cloak/profile"
)

func chromeH2(t *testing.T) *profile.HTTP2Fingerprint {
	t.Helper()
	prof, err := profile.Lookup(profile.Chrome120)
	if err != nil {
		t.Fatal(err)
	}
	return &prof.HTTP2
}

func TestNegotiateHTTP2_PreservesSettingsOrder(t *testing.T) {
	fp := chromeH2(t)
	frames, err := client.NegotiateHTTP2(fp)
	if err != nil {
		t.Fatalf("NegotiateHTTP2: %v", err)
	}
	if len(frames.Settings) != len(fp.Settings) {
		t.Fatalf("settings count: got %d, want %d", len(frames.Settings), len(fp.Settings))
	}
	for i, s := range frames.Settings {
		if s.ID != fp.Settings[i].ID || s.Val != fp.Settings[i].Val {
			t.Errorf("setting %d: got %v=%d, want %v=%d", i, s.ID, s.Val, fp.Settings[i].ID, fp.Settings[i].Val)
		}
	}
	if frames.ConnWindowUpdate != fp.ConnWindowUpdate {
		t.Errorf("conn window update: got %d, want %d", frames.ConnWindowUpdate, fp.ConnWindowUpdate)
	}
}

func TestMarshalSettings_FramerRoundTrip(t *testing.T) {
	frames, err := client.NegotiateHTTP2(chromeH2(t))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := frames.MarshalSettings()
	if err != nil {
		t.Fatalf("MarshalSettings: %v", err)
	}

	fr := http2.NewFramer(nil, bytes.NewReader(raw))
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	sf, ok := f.(*http2.SettingsFrame)
	if !ok {
		t.Fatalf("expected SETTINGS frame, got %T", f)
	}

	var got []http2.Setting
	if err := sf.ForeachSetting(func(s http2.Setting) error {
		got = append(got, s)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(got) != len(frames.Settings) {
		t.Fatalf("round-trip count: got %d, want %d", len(got), len(frames.Settings))
	}
	for i, s := range got {
		if s != frames.Settings[i] {
			t.Errorf("wire position %d: got %v, want %v", i, s, frames.Settings[i])
		}
	}
}

func TestNegotiateHTTP2_RejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		fp   profile.HTTP2Fingerprint
	}{
		{
			name: "duplicate setting",
			fp: profile.HTTP2Fingerprint{Settings: []profile.HTTP2Setting{
				{ID: http2.SettingHeaderTableSize, Val: 4096},
				{ID: http2.SettingHeaderTableSize, Val: 65536},
			}},
		},
		{
			name: "enable push out of range",
			fp: profile.HTTP2Fingerprint{Settings: []profile.HTTP2Setting{
				{ID: http2.SettingEnablePush, Val: 2},
			}},
		},
		{
			name: "initial window too large",
			fp: profile.HTTP2Fingerprint{Settings: []profile.HTTP2Setting{
				{ID: http2.SettingInitialWindowSize, Val: 1 << 31},
			}},
		},
		{
			name: "max frame size too small",
			fp: profile.HTTP2Fingerprint{Settings: []profile.HTTP2Setting{
				{ID: http2.SettingMaxFrameSize, Val: 100},
			}},
		},
		{
			name: "conn window update too large",
			fp:   profile.HTTP2Fingerprint{ConnWindowUpdate: 1 << 31},
		},
		{
			name: "incomplete pseudo-header order",
			fp:   profile.HTTP2Fingerprint{PseudoHeaderOrder: []string{":method", ":path"}},
		},
		{
			name: "unknown pseudo-header",
			fp:   profile.HTTP2Fingerprint{PseudoHeaderOrder: []string{":method", ":path", ":scheme", ":status"}},
		},
		{
			name: "duplicate pseudo-header",
			fp:   profile.HTTP2Fingerprint{PseudoHeaderOrder: []string{":method", ":method", ":scheme", ":path"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.NegotiateHTTP2(&tc.fp)
			var ise *client.InvalidSettingsError
			if !errors.As(err, &ise) {
				t.Fatalf("expected InvalidSettingsError, got %v", err)
			}
		})
	}
}

func TestNegotiateHTTP2_AllCatalogProfiles(t *testing.T) {
	for _, id := range profile.IDs() {
		prof, err := profile.Lookup(id)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := client.NegotiateHTTP2(&prof.HTTP2); err != nil {
			t.Errorf("profile %s: %v", id, err)
		}
	}
}
