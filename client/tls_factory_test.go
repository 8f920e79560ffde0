package client_test

import (
	"errors"
	"fmt"
	"testing"

	utls "github.com/refraction-networking/utls"

	"github.com/cloakhttp/cloak/client"
	"github.com/cloakhttp/cloak/profile"
)

func TestBuild_AllCatalogProfiles(t *testing.T) {
	f := client.NewTLSFactory(0)
	for _, id := range profile.IDs() {
		prof, err := profile.Lookup(id)
		if err != nil {
			t.Fatal(err)
		}
		cfg, err := f.Build(&prof.TLS, nil)
		if err != nil {
			t.Errorf("profile %s: %v", id, err)
			continue
		}
		if _, err := cfg.Spec(); err != nil {
			t.Errorf("profile %s spec: %v", id, err)
		}
	}
}

func TestBuild_SpecPreservesOrder(t *testing.T) {
	prof, err := profile.Lookup(profile.Chrome120)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := client.NewTLSFactory(0).Build(&prof.TLS, nil)
	if err != nil {
		t.Fatal(err)
	}
	spec, err := cfg.Spec()
	if err != nil {
		t.Fatal(err)
	}

	// GREASE placeholder leads, then the authored cipher order verbatim.
	if spec.CipherSuites[0] != utls.GREASE_PLACEHOLDER {
		t.Errorf("cipher 0: got %#x, want GREASE placeholder", spec.CipherSuites[0])
	}
	for i, want := range prof.TLS.CipherSuites {
		if got := spec.CipherSuites[i+1]; got != want {
			t.Errorf("cipher %d: got %#x, want %#x", i+1, got, want)
		}
	}

	// Every authored extension slot materialised (none are conditional for
	// this profile).
	if len(spec.Extensions) != len(prof.TLS.ExtensionOrder) {
		t.Errorf("extensions: got %d, want %d", len(spec.Extensions), len(prof.TLS.ExtensionOrder))
	}
	if spec.TLSVersMin != prof.TLS.MinVersion || spec.TLSVersMax != prof.TLS.MaxVersion {
		t.Errorf("version bounds: got %d-%d, want %d-%d",
			spec.TLSVersMin, spec.TLSVersMax, prof.TLS.MinVersion, prof.TLS.MaxVersion)
	}
}

func TestBuild_CachesByStructure(t *testing.T) {
	prof, err := profile.Lookup(profile.Chrome120)
	if err != nil {
		t.Fatal(err)
	}
	f := client.NewTLSFactory(0)

	cfg1, err := f.Build(&prof.TLS, nil)
	if err != nil {
		t.Fatal(err)
	}
	// A structurally identical copy hits the cache even though the pointer
	// differs.
	cp := prof.TLS
	cfg2, err := f.Build(&cp, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg1 != cfg2 {
		t.Error("expected identical config for structurally equal fingerprints")
	}
	if f.Len() != 1 {
		t.Errorf("cache size: got %d, want 1", f.Len())
	}
}

func TestBuild_CacheEvictsLRU(t *testing.T) {
	prof, err := profile.Lookup(profile.Chrome120)
	if err != nil {
		t.Fatal(err)
	}
	f := client.NewTLSFactory(2)
	for i := 0; i < 5; i++ {
		fp := prof.TLS
		fp.ALPN = []string{fmt.Sprintf("proto-%d", i)}
		if _, err := f.Build(&fp, nil); err != nil {
			t.Fatal(err)
		}
	}
	if f.Len() != 2 {
		t.Errorf("cache size: got %d, want 2", f.Len())
	}
}

func TestBuild_RejectsUnknownExtension(t *testing.T) {
	prof, err := profile.Lookup(profile.Chrome120)
	if err != nil {
		t.Fatal(err)
	}
	fp := prof.TLS
	fp.ExtensionOrder = append(append([]uint16(nil), fp.ExtensionOrder...), 9999)

	_, err = client.NewTLSFactory(0).Build(&fp, nil)
	var tce *client.TLSConfigError
	if !errors.As(err, &tce) {
		t.Fatalf("expected TLSConfigError, got %v", err)
	}
}

func TestBuild_NilFingerprint(t *testing.T) {
	_, err := client.NewTLSFactory(0).Build(nil, nil)
	var tce *client.TLSConfigError
	if !errors.As(err, &tce) {
		t.Fatalf("expected TLSConfigError, got %v", err)
	}
}
