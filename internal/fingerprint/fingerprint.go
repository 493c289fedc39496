// Package fingerprint identifies the operating system of a DHCP client by
// scoring Satori DHCP signatures against decoded packet fields.
package fingerprint

import (
	"errors"
	"fmt"

	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// NoMatchWeight is returned by BestWeight when no test matches.
const NoMatchWeight = -1

// OSFingerprint is a named OS identity with the tests that recognize it.
type OSFingerprint struct {
	OSName  string
	OSClass string
	Tests   []TestRule

	index int // Position in the signature file, used for the fallback label
}

// Label returns "class - name", whichever of the two is set, or a fallback
// identity when both are empty.
func (f *OSFingerprint) Label() string {
	switch {
	case f.OSName != "" && f.OSClass != "":
		return f.OSClass + " - " + f.OSName
	case f.OSName != "":
		return f.OSName
	case f.OSClass != "":
		return f.OSClass
	default:
		return fmt.Sprintf("fingerprint #%d", f.index)
	}
}

func (f *OSFingerprint) String() string {
	return f.Label()
}

// BestWeight returns the highest weight among matching tests, or
// NoMatchWeight. Tests that cannot raise the current best are not evaluated.
func (f *OSFingerprint) BestWeight(dhcp *model.DHCPPacket, ip *model.IPv4Packet) (int, error) {
	best := NoMatchWeight
	for _, t := range f.Tests {
		if t.Weight <= best {
			continue
		}
		ok, err := t.Matches(dhcp, ip)
		if err != nil {
			var fault *ClassificationError
			if errors.As(err, &fault) {
				fault.Fingerprint = f.Label()
			}
			return NoMatchWeight, err
		}
		if ok {
			best = t.Weight
		}
	}
	return best, nil
}
