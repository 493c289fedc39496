package fingerprint

import (
	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// SatoriDHCPName identifies the Satori DHCP fingerprinter.
const SatoriDHCPName = "Satori DHCP"

// OSFingerprinter identifies operating systems from a set of decoded packets
// belonging to one transaction. A false result means "unknown" and is an
// expected outcome, not an error.
type OSFingerprinter interface {
	Name() string
	OperatingSystems(packets []model.Packet) ([]string, bool)
}

// WeightedFingerprinter is implemented by fingerprinters that can report the
// score behind their labels.
type WeightedFingerprinter interface {
	OSFingerprinter
	Match(packets []model.Packet) (model.MatchResult, bool)
}

// SatoriDHCPFingerprinter scores DHCP packets against a Satori signature database.
type SatoriDHCPFingerprinter struct {
	db *Database
}

// NewSatoriDHCPFingerprinter wraps a loaded database.
func NewSatoriDHCPFingerprinter(db *Database) *SatoriDHCPFingerprinter {
	return &SatoriDHCPFingerprinter{db: db}
}

func (s *SatoriDHCPFingerprinter) Name() string {
	return SatoriDHCPName
}

// Database returns the signatures the fingerprinter scores against.
func (s *SatoriDHCPFingerprinter) Database() *Database {
	return s.db
}

// OperatingSystems returns the best-scoring OS labels in load order.
func (s *SatoriDHCPFingerprinter) OperatingSystems(packets []model.Packet) ([]string, bool) {
	result, ok := s.Match(packets)
	if !ok {
		return nil, false
	}
	return result.Labels, true
}

// Match returns the labels together with their shared weight.
func (s *SatoriDHCPFingerprinter) Match(packets []model.Packet) (model.MatchResult, bool) {
	if s.db == nil {
		return model.MatchResult{}, false
	}
	return Classify(s.db, packets)
}
