package model

import (
	"errors"
	"net"
	"regexp"
	"time"
)

var macAddressRegex = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})$`)

// Well-known DHCPv4 option codes used by the fingerprinter.
const (
	DHCPOptPad                uint8 = 0
	DHCPOptLeaseTime          uint8 = 51
	DHCPOptMessageType        uint8 = 53
	DHCPOptParamsRequest      uint8 = 55
	DHCPOptMaxMessageSize     uint8 = 57
	DHCPOptVendorClassID      uint8 = 60
	DHCPOptEnd                uint8 = 255
	DHCPOperationBootRequest  uint8 = 1
	DHCPOperationBootResponse uint8 = 2
)

// DHCPLeaseTimeInfinite is the option 51 value for a lease that never expires.
const DHCPLeaseTimeInfinite = ^uint32(0)

// dhcpMessageTypeNames maps RFC 2132 message type codes to the names used in
// Satori signature files.
var dhcpMessageTypeNames = [...]string{
	1: "Discover",
	2: "Offer",
	3: "Request",
	4: "Decline",
	5: "ACK",
	6: "NAK",
	7: "Release",
	8: "Inform",
}

// MessageTypeName returns the signature name for a DHCP message type code.
// The boolean is false for codes outside 1-8.
func MessageTypeName(code uint8) (string, bool) {
	if code == 0 || int(code) >= len(dhcpMessageTypeNames) {
		return "", false
	}
	return dhcpMessageTypeNames[code], true
}

// Packet is a decoded protocol layer handed to a fingerprinter.
type Packet interface {
	LayerName() string
}

// DHCPOption is a single tagged option of a DHCPv4 message.
type DHCPOption struct {
	Code  uint8
	Value []byte
}

// DHCPPacket holds the DHCPv4 fields the fingerprinter looks at.
type DHCPPacket struct {
	MessageType uint8        // Option 53 value, 0 when absent
	Options     []DHCPOption // In wire order, without Pad and End
}

func (p *DHCPPacket) LayerName() string { return "dhcpv4" }

// Option returns the last option carrying the given code.
func (p *DHCPPacket) Option(code uint8) (DHCPOption, bool) {
	var (
		found DHCPOption
		ok    bool
	)
	for _, o := range p.Options {
		if o.Code == code {
			found, ok = o, true
		}
	}
	return found, ok
}

// IPv4Packet holds the IP header fields the fingerprinter looks at.
type IPv4Packet struct {
	TTL uint8
}

func (p *IPv4Packet) LayerName() string { return "ipv4" }

// Observation is one decoded DHCP frame together with its IP layer.
type Observation struct {
	Timestamp     time.Time
	ClientMAC     string
	ClientIP      net.IP
	ServerIP      net.IP
	TransactionID uint32
	Operation     uint8
	Packets       []Packet
}

// DHCP returns the last DHCP layer of the observation, or nil.
func (o *Observation) DHCP() *DHCPPacket {
	var dhcp *DHCPPacket
	for _, p := range o.Packets {
		if d, ok := p.(*DHCPPacket); ok {
			dhcp = d
		}
	}
	return dhcp
}

func (o *Observation) Validate() error {
	if o.Timestamp.IsZero() {
		return errors.New("timestamp must not be zero")
	}
	if o.ClientMAC != "" && !IsValidMACAddress(o.ClientMAC) {
		return errors.New("invalid client MAC address " + o.ClientMAC)
	}
	if o.DHCP() == nil {
		return errors.New("observation carries no DHCP layer")
	}
	return nil
}

func IsValidMACAddress(address string) bool {
	return macAddressRegex.MatchString(address)
}
