package fingerprint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// ConditionKind identifies how a test attribute is compared against a packet.
type ConditionKind int

const (
	KindUnknown ConditionKind = iota
	KindMatchType
	KindDHCPType
	KindDHCPOptions
	KindVendorCode
	KindDHCPTTL
	KindIPTTL
	KindLeaseTime
	KindParamsRequest
	KindMaxMessageSize
)

// Attribute names as they appear in Satori signature files.
const (
	AttrWeight         = "weight"
	AttrMatchType      = "matchtype"
	AttrDHCPType       = "dhcptype"
	AttrDHCPOptions    = "dhcpoptions"
	AttrVendorCode     = "dhcpvendorcode"
	AttrDHCPTTL        = "dhcpttl"
	AttrIPTTL          = "ipttl"
	AttrLeaseTime      = "dhcpoption51"
	AttrParamsRequest  = "dhcpoption55"
	AttrMaxMessageSize = "dhcpoption57"

	leaseTimeInfinite = "infinite"
)

var conditionKinds = map[string]ConditionKind{
	AttrMatchType:      KindMatchType,
	AttrDHCPType:       KindDHCPType,
	AttrDHCPOptions:    KindDHCPOptions,
	AttrVendorCode:     KindVendorCode,
	AttrDHCPTTL:        KindDHCPTTL,
	AttrIPTTL:          KindIPTTL,
	AttrLeaseTime:      KindLeaseTime,
	AttrParamsRequest:  KindParamsRequest,
	AttrMaxMessageSize: KindMaxMessageSize,
}

// KindOf resolves an attribute name to its condition kind.
func KindOf(name string) ConditionKind {
	if k, ok := conditionKinds[name]; ok {
		return k
	}
	return KindUnknown
}

func (k ConditionKind) String() string {
	switch k {
	case KindMatchType:
		return AttrMatchType
	case KindDHCPType:
		return AttrDHCPType
	case KindDHCPOptions:
		return AttrDHCPOptions
	case KindVendorCode:
		return AttrVendorCode
	case KindDHCPTTL:
		return AttrDHCPTTL
	case KindIPTTL:
		return AttrIPTTL
	case KindLeaseTime:
		return AttrLeaseTime
	case KindParamsRequest:
		return AttrParamsRequest
	case KindMaxMessageSize:
		return AttrMaxMessageSize
	default:
		return "unknown"
	}
}

// Condition is one declared comparison of a test rule.
type Condition struct {
	Kind  ConditionKind
	Name  string // Attribute name as written in the signature file
	Value string // Declared value, compared verbatim
}

// NewCondition builds a condition from a signature attribute.
func NewCondition(name, value string) Condition {
	return Condition{Kind: KindOf(name), Name: name, Value: value}
}

// Evaluate checks the condition against a DHCP packet and an optional IP
// layer. Match-type and unrecognized conditions always pass. A non-nil error
// means the packet or the declared value could not be interpreted.
func (c Condition) Evaluate(dhcp *model.DHCPPacket, ip *model.IPv4Packet) (bool, error) {
	switch c.Kind {
	case KindDHCPType:
		return matchMessageType(dhcp, c.Value), nil
	case KindDHCPOptions:
		return matchOptionList(dhcp, c.Value), nil
	case KindVendorCode:
		return matchVendorCode(dhcp, c.Value)
	case KindDHCPTTL, KindIPTTL:
		return matchTTL(ip, c.Value), nil
	case KindLeaseTime:
		return matchLeaseTime(dhcp, c.Value)
	case KindParamsRequest:
		return matchParamsRequest(dhcp, c.Value), nil
	case KindMaxMessageSize:
		return matchMaxMessageSize(dhcp, c.Value)
	default:
		return true, nil
	}
}

// matchMessageType passes trivially for codes without a name.
func matchMessageType(dhcp *model.DHCPPacket, declared string) bool {
	name, ok := model.MessageTypeName(dhcp.MessageType)
	if !ok {
		return true
	}
	return name == declared
}

func matchOptionList(dhcp *model.DHCPPacket, declared string) bool {
	if len(dhcp.Options) == 0 {
		return false
	}
	return OptionList(dhcp) == declared
}

// OptionList renders the option codes of a packet in wire order, e.g. "53,61,12,60,55".
func OptionList(dhcp *model.DHCPPacket) string {
	var sb strings.Builder
	for i, o := range dhcp.Options {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(o.Code)))
	}
	return sb.String()
}

func matchVendorCode(dhcp *model.DHCPPacket, declared string) (bool, error) {
	opt, ok := dhcp.Option(model.DHCPOptVendorClassID)
	if !ok {
		return false, nil
	}
	vendor, err := VendorClass(opt.Value)
	if err != nil {
		return false, err
	}
	return vendor == declared, nil
}

// VendorClass decodes a vendor class identifier as Latin-1, stopping at the
// first NUL byte.
func VendorClass(raw []byte) (string, error) {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: option 60: %v", ErrMalformedOption, err)
	}
	return string(decoded), nil
}

// matchTTL fails when the IP layer is absent.
func matchTTL(ip *model.IPv4Packet, declared string) bool {
	if ip == nil {
		return false
	}
	return strconv.Itoa(int(ip.TTL)) == declared
}

func matchLeaseTime(dhcp *model.DHCPPacket, declared string) (bool, error) {
	opt, ok := dhcp.Option(model.DHCPOptLeaseTime)
	if !ok {
		return false, nil
	}
	if len(opt.Value) < 4 {
		return false, fmt.Errorf("%w: option 51 carries %d bytes, need 4", ErrMalformedOption, len(opt.Value))
	}
	lease := binary.BigEndian.Uint32(opt.Value)

	if want, err := strconv.ParseUint(declared, 10, 32); err == nil && uint32(want) != lease {
		return false, nil
	}
	// An infinite lease only matches the literal token, never its numeric spelling.
	if lease == model.DHCPLeaseTimeInfinite && declared != leaseTimeInfinite {
		return false, nil
	}
	return true, nil
}

func matchParamsRequest(dhcp *model.DHCPPacket, declared string) bool {
	opt, ok := dhcp.Option(model.DHCPOptParamsRequest)
	if !ok || len(opt.Value) == 0 {
		return false
	}
	return ParamsRequestList(opt.Value) == declared
}

// ParamsRequestList renders option 55 as decimal codes, e.g. "1,3,6,15".
func ParamsRequestList(raw []byte) string {
	var sb strings.Builder
	for i, b := range raw {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(b)))
	}
	return sb.String()
}

func matchMaxMessageSize(dhcp *model.DHCPPacket, declared string) (bool, error) {
	opt, ok := dhcp.Option(model.DHCPOptMaxMessageSize)
	if !ok {
		return false, nil
	}
	if len(opt.Value) < 2 {
		return false, fmt.Errorf("%w: option 57 carries %d bytes, need 2", ErrMalformedOption, len(opt.Value))
	}
	want, err := strconv.ParseUint(strings.TrimSpace(declared), 10, 16)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrBadDeclaredValue, AttrMaxMessageSize, declared)
	}
	return binary.BigEndian.Uint16(opt.Value) == uint16(want), nil
}
