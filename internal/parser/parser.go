package parser

import "github.com/InfraSecConsult/dhcp-osfp-go/lib/model"

// PacketParser defines the contract for turning a capture file into DHCP observations.
type PacketParser interface {
	ParseFile() ([]*model.Observation, error)
}
