package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		expected ConditionKind
	}{
		{"dhcptype", KindDHCPType},
		{"dhcpoptions", KindDHCPOptions},
		{"dhcpvendorcode", KindVendorCode},
		{"dhcpttl", KindDHCPTTL},
		{"ipttl", KindIPTTL},
		{"dhcpoption51", KindLeaseTime},
		{"dhcpoption55", KindParamsRequest},
		{"dhcpoption57", KindMaxMessageSize},
		{"matchtype", KindMatchType},
		{"dhcpoption12", KindUnknown},
		{"DHCPTYPE", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := KindOf(tt.name)
			assert.Equal(t, tt.expected, kind)
			if kind != KindUnknown {
				assert.Equal(t, tt.name, kind.String())
			}
		})
	}
}

func TestCondition_DHCPType(t *testing.T) {
	ack := newDHCP(5, opt(53, 5))

	ok, err := NewCondition("dhcptype", "ACK").Evaluate(ack, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewCondition("dhcptype", "Offer").Evaluate(ack, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	// Codes without a canonical name have nothing to violate.
	for _, code := range []uint8{0, 9, 200} {
		ok, err = NewCondition("dhcptype", "Discover").Evaluate(newDHCP(code), nil)
		require.NoError(t, err)
		assert.True(t, ok, "message type %d", code)
	}
}

func TestCondition_DHCPOptionsExactness(t *testing.T) {
	packet := newDHCP(8, opt(53, 8), opt(61), opt(12), opt(60), opt(55))

	tests := []struct {
		declared string
		expected bool
	}{
		{"53,61,12,60,55", true},
		{"53,61,12,55,60", false},
		{"53,61,12,60", false},
		{"53,61,12,60,55,", false},
		{"53, 61, 12, 60, 55", false},
	}
	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			ok, err := NewCondition("dhcpoptions", tt.declared).Evaluate(packet, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}

	ok, err := NewCondition("dhcpoptions", "").Evaluate(newDHCP(1), nil)
	require.NoError(t, err)
	assert.False(t, ok, "packet without options must never match")
}

func TestCondition_VendorCode(t *testing.T) {
	ok, err := NewCondition("dhcpvendorcode", "MSFT 5.0").Evaluate(newDHCP(1, opt(60, []byte("MSFT 5.0")...)), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewCondition("dhcpvendorcode", "MSFT 5.0").Evaluate(newDHCP(1, opt(12, []byte("MSFT 5.0")...)), nil)
	require.NoError(t, err)
	assert.False(t, ok, "option 60 absent")

	ok, err = NewCondition("dhcpvendorcode", "msft 5.0").Evaluate(newDHCP(1, opt(60, []byte("MSFT 5.0")...)), nil)
	require.NoError(t, err)
	assert.False(t, ok, "comparison is case sensitive")
}

func TestVendorClass(t *testing.T) {
	got, err := VendorClass([]byte{'C', 'a', 'f', 0xE9})
	require.NoError(t, err)
	assert.Equal(t, "Café", got)

	got, err = VendorClass([]byte("udhcp 1.30\x00\x00"))
	require.NoError(t, err)
	assert.Equal(t, "udhcp 1.30", got)

	got, err = VendorClass(nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestCondition_TTLWithoutIPLayer(t *testing.T) {
	packet := newDHCP(1, opt(53, 1))
	ip := &model.IPv4Packet{TTL: 128}

	for _, name := range []string{"dhcpttl", "ipttl"} {
		t.Run(name, func(t *testing.T) {
			ok, err := NewCondition(name, "128").Evaluate(packet, ip)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = NewCondition(name, "64").Evaluate(packet, ip)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = NewCondition(name, "128").Evaluate(packet, nil)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

// The ipttl handler historically dereferenced the IP layer without a nil
// check. Here it fails the rule the same way dhcpttl does instead of
// raising a fault.
func TestTestRule_IPTTLWithoutIPLayerFailsSafely(t *testing.T) {
	rule := NewTestRule(5, []Attribute{{Name: "weight", Value: "5"}, {Name: "ipttl", Value: "64"}})

	ok, err := rule.Matches(newDHCP(1, opt(53, 1)), nil)
	assert.NoError(t, err, "absent IP layer must not be a classification fault")
	assert.False(t, ok)
}

func TestCondition_LeaseTime(t *testing.T) {
	tests := []struct {
		name     string
		lease    uint32
		declared string
		expected bool
	}{
		{"finite equal", 3600, "3600", true},
		{"finite different", 3600, "7200", false},
		{"infinite token", model.DHCPLeaseTimeInfinite, "infinite", true},
		{"infinite numeric", model.DHCPLeaseTimeInfinite, "4294967295", false},
		{"infinite numeric leading zero", model.DHCPLeaseTimeInfinite, "04294967295", false},
		{"infinite other token", model.DHCPLeaseTimeInfinite, "forever", false},
		{"finite with non numeric declaration", 3600, "infinite", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packet := newDHCP(3, opt(51, u32(tt.lease)...))
			ok, err := NewCondition("dhcpoption51", tt.declared).Evaluate(packet, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestCondition_LeaseTimeMalformed(t *testing.T) {
	ok, err := NewCondition("dhcpoption51", "3600").Evaluate(newDHCP(3, opt(51, 0x0e, 0x10)), nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMalformedOption)

	ok, err = NewCondition("dhcpoption51", "3600").Evaluate(newDHCP(3), nil)
	assert.NoError(t, err)
	assert.False(t, ok, "option 51 absent")
}

func TestCondition_ParamsRequest(t *testing.T) {
	packet := newDHCP(1, opt(55, 1, 3, 6, 15))

	ok, err := NewCondition("dhcpoption55", "1,3,6,15").Evaluate(packet, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewCondition("dhcpoption55", "1,3,6").Evaluate(packet, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = NewCondition("dhcpoption55", "").Evaluate(newDHCP(1, opt(55)), nil)
	require.NoError(t, err)
	assert.False(t, ok, "empty option 55 never matches")

	assert.Equal(t, "1,121,3,6,15,119,252", ParamsRequestList([]byte{1, 121, 3, 6, 15, 119, 252}))
}

func TestCondition_MaxMessageSize(t *testing.T) {
	packet := newDHCP(1, opt(57, u16(1500)...))

	ok, err := NewCondition("dhcpoption57", "1500").Evaluate(packet, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewCondition("dhcpoption57", "576").Evaluate(packet, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewCondition("dhcpoption57", "large").Evaluate(packet, nil)
	assert.ErrorIs(t, err, ErrBadDeclaredValue)

	_, err = NewCondition("dhcpoption57", "70000").Evaluate(packet, nil)
	assert.ErrorIs(t, err, ErrBadDeclaredValue)

	_, err = NewCondition("dhcpoption57", "1500").Evaluate(newDHCP(1, opt(57, 0x05)), nil)
	assert.ErrorIs(t, err, ErrMalformedOption)
}

func TestCondition_IgnoredAttributesAlwaysPass(t *testing.T) {
	packet := newDHCP(1)
	for _, c := range []Condition{
		NewCondition("matchtype", "partial"),
		NewCondition("dhcpoption12", "printer"),
		NewCondition("", ""),
	} {
		ok, err := c.Evaluate(packet, nil)
		require.NoError(t, err)
		assert.True(t, ok, c.Name)
	}
}

func TestTestRule_Matches(t *testing.T) {
	rule := NewTestRule(4, []Attribute{
		{Name: "weight", Value: "4"},
		{Name: "matchtype", Value: "exact"},
		{Name: "dhcptype", Value: "Inform"},
		{Name: "dhcpoptions", Value: "53,61,12,60,55"},
		{Name: "os_hint", Value: "desktop"},
	})

	assert.Equal(t, 4, rule.Weight)
	assert.Len(t, rule.Attributes, 5)
	assert.Len(t, rule.Conditions, 4, "weight is not a condition")
	assert.Equal(t, []string{"os_hint"}, rule.Unrecognized())

	ok, err := rule.Matches(informPacket(), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rule.Matches(newDHCP(1, opt(53, 1), opt(61), opt(12), opt(60), opt(55)), nil)
	require.NoError(t, err)
	assert.False(t, ok)

	empty := NewTestRule(0, nil)
	ok, err = empty.Matches(newDHCP(1), nil)
	require.NoError(t, err)
	assert.True(t, ok, "rule without conditions always matches")
}

func TestTestRule_ShortCircuitsBeforeFault(t *testing.T) {
	// dhcptype fails first, so the malformed option 51 is never decoded.
	rule := NewTestRule(4, []Attribute{
		{Name: "dhcptype", Value: "Request"},
		{Name: "dhcpoption51", Value: "3600"},
	})
	ok, err := rule.Matches(newDHCP(1, opt(53, 1), opt(51, 0x01)), nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rule.Matches(newDHCP(3, opt(53, 3), opt(51, 0x01)), nil)
	assert.False(t, ok)
	var fault *ClassificationError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "dhcpoption51", fault.Condition)
}
