package client

import (
	"bytes"
	"fmt"
	"time"

	"golang.org/x/net/http2"

	"github.com/cloakhttp/cloak/profile"
)

// maxWindowSize is the largest legal flow-control window (RFC 7540 §6.9.1).
const maxWindowSize = 1<<31 - 1

// H2Frames is the negotiator's output: the exact artifacts a connection
// needs at establishment time.  Settings is an ordered slice, never a map —
// serialising from a key-unordered mapping would silently reorder the
// SETTINGS frame and break the fingerprint.
type H2Frames struct {
	// Settings is the SETTINGS frame payload in authored order.
	Settings []http2.Setting

	// ConnWindowUpdate is the connection-level WINDOW_UPDATE increment sent
	// after the preface, or 0 for none.
	ConnWindowUpdate uint32

	// PseudoHeaderOrder is the HEADERS-frame pseudo-header permutation.
	PseudoHeaderOrder []string

	// Priority is the stream dependency attached to the initial HEADERS
	// frame.
	Priority http2.PriorityParam
}

// pseudoHeaderNames is the complete legal pseudo-header set for requests.
var pseudoHeaderNames = map[string]bool{
	":method":    true,
	":scheme":    true,
	":authority": true,
	":path":      true,
}

// NegotiateHTTP2 validates fp and produces its frame artifacts.  Validation
// is strict: out-of-range values surface as InvalidSettingsError rather than
// being clamped, because a clamped value would change the fingerprint
// silently.
func NegotiateHTTP2(fp *profile.HTTP2Fingerprint) (*H2Frames, error) {
	if fp == nil {
		return nil, &InvalidSettingsError{Param: "fingerprint", Reason: "nil"}
	}

	seen := make(map[http2.SettingID]bool, len(fp.Settings))
	settings := make([]http2.Setting, 0, len(fp.Settings))
	for _, s := range fp.Settings {
		if seen[s.ID] {
			return nil, &InvalidSettingsError{Param: s.ID.String(), Reason: "duplicated parameter id"}
		}
		seen[s.ID] = true

		switch s.ID {
		case http2.SettingEnablePush:
			if s.Val > 1 {
				return nil, &InvalidSettingsError{Param: s.ID.String(), Reason: fmt.Sprintf("value %d not 0 or 1", s.Val)}
			}
		case http2.SettingInitialWindowSize:
			if s.Val > maxWindowSize {
				return nil, &InvalidSettingsError{Param: s.ID.String(), Reason: fmt.Sprintf("value %d exceeds 2^31-1", s.Val)}
			}
		case http2.SettingMaxFrameSize:
			if s.Val < 16384 || s.Val > 16777215 {
				return nil, &InvalidSettingsError{Param: s.ID.String(), Reason: fmt.Sprintf("value %d outside [16384, 16777215]", s.Val)}
			}
		}
		settings = append(settings, http2.Setting{ID: s.ID, Val: s.Val})
	}

	if fp.ConnWindowUpdate > maxWindowSize {
		return nil, &InvalidSettingsError{Param: "connection window update", Reason: fmt.Sprintf("increment %d exceeds 2^31-1", fp.ConnWindowUpdate)}
	}

	if len(fp.PseudoHeaderOrder) > 0 {
		if len(fp.PseudoHeaderOrder) != len(pseudoHeaderNames) {
			return nil, &InvalidSettingsError{Param: "pseudo-header order", Reason: "must list all four pseudo-headers"}
		}
		dup := make(map[string]bool, 4)
		for _, name := range fp.PseudoHeaderOrder {
			if !pseudoHeaderNames[name] {
				return nil, &InvalidSettingsError{Param: "pseudo-header order", Reason: fmt.Sprintf("unknown pseudo-header %q", name)}
			}
			if dup[name] {
				return nil, &InvalidSettingsError{Param: "pseudo-header order", Reason: fmt.Sprintf("duplicate pseudo-header %q", name)}
			}
			dup[name] = true
		}
	}

	return &H2Frames{
		Settings:          settings,
		ConnWindowUpdate:  fp.ConnWindowUpdate,
		PseudoHeaderOrder: append([]string(nil), fp.PseudoHeaderOrder...),
		Priority: http2.PriorityParam{
			StreamDep: fp.PriorityDep,
			Weight:    fp.PriorityWeight,
			Exclusive: fp.PriorityExclusive,
		},
	}, nil
}

// MarshalSettings serialises the SETTINGS frame (header + payload) with the
// authored parameter sequence verbatim.  This is the wire-exact artifact;
// tests round-trip it through an http2.Framer to pin the order.
func (f *H2Frames) MarshalSettings() ([]byte, error) {
	var buf bytes.Buffer
	fr := http2.NewFramer(&buf, nil)
	if err := fr.WriteSettings(f.Settings...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// settingVal returns the authored value for id, if present.
func (f *H2Frames) settingVal(id http2.SettingID) (uint32, bool) {
	for _, s := range f.Settings {
		if s.ID == id {
			return s.Val, true
		}
	}
	return 0, false
}

// ConfigureTransport applies the fingerprint to an x/net http2.Transport.
//
// The x/net client serialises its SETTINGS frame in a fixed internal order
// and writes pseudo-headers as :method, :path, :scheme (then :authority via
// the Host), so exact wire-level SETTINGS order and pseudo-header order are
// not reachable through its public API.  MarshalSettings and
// PseudoHeaderOrder carry the authoritative artifacts for integrators that
// need full framing fidelity; ConfigureTransport forwards everything the
// x/net API does expose.
func (f *H2Frames) ConfigureTransport(t *http2.Transport) {
	if v, ok := f.settingVal(http2.SettingHeaderTableSize); ok {
		t.MaxDecoderHeaderTableSize = v
		t.MaxEncoderHeaderTableSize = v
	}
	if v, ok := f.settingVal(http2.SettingMaxHeaderListSize); ok {
		t.MaxHeaderListSize = v
	}
	if v, ok := f.settingVal(http2.SettingMaxFrameSize); ok {
		t.MaxReadFrameSize = v
	}
	if _, ok := f.settingVal(http2.SettingMaxConcurrentStreams); ok {
		// Respect the peer's advertised limit strictly rather than opening
		// extra connections beyond it.
		t.StrictMaxConcurrentStreams = true
	}
	t.ReadIdleTimeout = 30 * time.Second
}

// MaxConcurrentStreams returns the fingerprint's advertised concurrency
// limit, or 0 when the profile leaves it unset (effectively unlimited).
func (f *H2Frames) MaxConcurrentStreams() uint32 {
	v, _ := f.settingVal(http2.SettingMaxConcurrentStreams)
	return v
}
