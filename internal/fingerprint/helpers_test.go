package fingerprint

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// newDHCP builds a DHCP packet carrying the given options in order.
func newDHCP(msgType uint8, opts ...model.DHCPOption) *model.DHCPPacket {
	return &model.DHCPPacket{MessageType: msgType, Options: opts}
}

func opt(code uint8, value ...byte) model.DHCPOption {
	return model.DHCPOption{Code: code, Value: value}
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// informPacket is a Windows 10 style DHCPINFORM with options 53,61,12,60,55.
func informPacket() *model.DHCPPacket {
	return newDHCP(8,
		opt(53, 8),
		opt(61, 0x01, 0x00, 0x0c, 0x29, 0x3e, 0x5c, 0x01),
		opt(12, []byte("DESKTOP-01")...),
		opt(60, []byte("MSFT 5.0")...),
		opt(55, 1, 3, 6, 15, 31, 33, 43, 44, 46, 47, 119, 121, 249, 252),
	)
}

// mustParseXML parses an inline signature document wrapped in the usual
// root and fingerprints elements.
func mustParseXML(t *testing.T, fingerprints string) *Database {
	t.Helper()
	doc := "<DHCP><fingerprints>" + fingerprints + "</fingerprints></DHCP>"
	db, err := ParseXML(strings.NewReader(doc))
	require.NoError(t, err)
	return db
}

func packetSet(dhcp *model.DHCPPacket, extra ...model.Packet) []model.Packet {
	return append([]model.Packet{dhcp}, extra...)
}
