package profile

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownProfile is returned by Lookup when the requested emulation ID is
// not registered.  It is a caller configuration error and is never retried.
var ErrUnknownProfile = errors.New("profile: unknown emulation profile")

// catalog is the process-wide profile registry.  Entries are added from init
// functions only; after package initialisation the map is read-only, so the
// mutex matters only for the (unusual) case of test code registering extra
// profiles at runtime.
var (
	catalogMu sync.RWMutex
	catalog   = make(map[string]*Profile)
)

// register adds p to the catalog.  A duplicate or empty ID is a programming
// error in the static tables and panics at init time rather than surfacing a
// runtime error.
func register(p *Profile) {
	if p.ID == "" {
		panic("profile: register with empty ID")
	}
	catalogMu.Lock()
	defer catalogMu.Unlock()
	if _, dup := catalog[p.ID]; dup {
		panic(fmt.Sprintf("profile: duplicate registration of %q", p.ID))
	}
	catalog[p.ID] = p
}

// Lookup returns the profile registered under id.  The returned pointer is
// shared and must not be mutated.
func Lookup(id string) (*Profile, error) {
	catalogMu.RLock()
	p, ok := catalog[id]
	catalogMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, id)
	}
	return p, nil
}

// MustLookup is Lookup for static IDs that are known to exist; it panics on
// an unknown ID.
func MustLookup(id string) *Profile {
	p, err := Lookup(id)
	if err != nil {
		panic(err)
	}
	return p
}

// IDs returns all registered profile IDs in sorted order.
func IDs() []string {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
