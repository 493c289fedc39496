package fingerprint

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// WeightFloor is the score a fingerprint must exceed before it is reported.
const WeightFloor = 3

// Extract returns the last DHCP and the last IPv4 packet of a packet set.
// Either may be nil.
func Extract(packets []model.Packet) (*model.DHCPPacket, *model.IPv4Packet) {
	var (
		dhcp *model.DHCPPacket
		ip   *model.IPv4Packet
	)
	for _, p := range packets {
		switch v := p.(type) {
		case *model.DHCPPacket:
			if v != nil {
				dhcp = v
			}
		case *model.IPv4Packet:
			if v != nil {
				ip = v
			}
		}
	}
	return dhcp, ip
}

// Match scores every fingerprint against the packet set and returns the
// labels sharing the highest weight above WeightFloor. It returns
// ErrNoDHCPPacket, ErrNoMatch or a *ClassificationError when there is no
// result.
func (db *Database) Match(packets []model.Packet) (result model.MatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = model.MatchResult{}
			err = &ClassificationError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	dhcp, ip := Extract(packets)
	if dhcp == nil {
		return model.MatchResult{}, ErrNoDHCPPacket
	}

	best := WeightFloor
	var labels []string
	for _, f := range db.fingerprints {
		w, err := f.BestWeight(dhcp, ip)
		if err != nil {
			return model.MatchResult{}, err
		}
		switch {
		case w > best:
			best = w
			labels = []string{f.Label()}
		case w == best && len(labels) > 0:
			labels = append(labels, f.Label())
		}
	}

	if len(labels) == 0 {
		return model.MatchResult{}, ErrNoMatch
	}
	return model.MatchResult{Labels: labels, Weight: best}, nil
}

// Classify runs Match and collapses every failure to "no match". Faults are
// logged, never returned.
func Classify(db *Database, packets []model.Packet) (model.MatchResult, bool) {
	result, err := db.Match(packets)
	if err != nil {
		if IsFault(err) {
			log.Warn().
				Err(err).
				Str("signatures", db.Source()).
				Msg("DHCP classification fault, reporting no match")
		}
		return model.MatchResult{}, false
	}
	return result, true
}
