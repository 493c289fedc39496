package fingerprint

import (
	"fmt"
	"sync"

	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// Identification is the answer of one fingerprinter for a packet set.
type Identification struct {
	Fingerprinter string   `json:"fingerprinter"`
	Labels        []string `json:"labels"`
	Weight        int      `json:"weight,omitempty"`
}

// Registry holds the fingerprinters consulted for every packet set.
type Registry struct {
	mu             sync.RWMutex
	fingerprinters []OSFingerprinter
}

// NewRegistry returns a registry pre-populated with fps.
func NewRegistry(fps ...OSFingerprinter) *Registry {
	r := &Registry{}
	for _, fp := range fps {
		_ = r.Register(fp) // repeated names are dropped
	}
	return r
}

// Register adds a fingerprinter. Names must be unique.
func (r *Registry) Register(fp OSFingerprinter) error {
	if fp == nil {
		return fmt.Errorf("register fingerprinter: nil fingerprinter")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.fingerprinters {
		if existing.Name() == fp.Name() {
			return fmt.Errorf("register fingerprinter: %q already registered", fp.Name())
		}
	}
	r.fingerprinters = append(r.fingerprinters, fp)
	return nil
}

// List returns a snapshot of the registered fingerprinters.
func (r *Registry) List() []OSFingerprinter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]OSFingerprinter(nil), r.fingerprinters...)
}

// Lookup finds a fingerprinter by name.
func (r *Registry) Lookup(name string) (OSFingerprinter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fp := range r.fingerprinters {
		if fp.Name() == name {
			return fp, true
		}
	}
	return nil, false
}

// Identify runs every fingerprinter in registration order and collects the
// ones that produced labels.
func (r *Registry) Identify(packets []model.Packet) []Identification {
	var out []Identification
	for _, fp := range r.List() {
		if wfp, ok := fp.(WeightedFingerprinter); ok {
			result, ok := wfp.Match(packets)
			if ok {
				out = append(out, Identification{Fingerprinter: fp.Name(), Labels: result.Labels, Weight: result.Weight})
			}
			continue
		}
		if labels, ok := fp.OperatingSystems(packets); ok {
			out = append(out, Identification{Fingerprinter: fp.Name(), Labels: labels})
		}
	}
	return out
}
