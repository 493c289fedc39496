package fingerprint

import (
	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// Attribute is a name/value pair of a test record, kept as written.
type Attribute struct {
	Name  string
	Value string
}

// TestRule is one weighted AND-combination of conditions.
type TestRule struct {
	Weight     int
	Attributes []Attribute // Full attribute bag in document order, weight included
	Conditions []Condition // Every attribute except weight
}

// NewTestRule builds a rule from a parsed weight and its attribute bag.
func NewTestRule(weight int, attrs []Attribute) TestRule {
	rule := TestRule{
		Weight:     weight,
		Attributes: append([]Attribute(nil), attrs...),
		Conditions: make([]Condition, 0, len(attrs)),
	}
	for _, a := range attrs {
		if a.Name == AttrWeight {
			continue
		}
		rule.Conditions = append(rule.Conditions, NewCondition(a.Name, a.Value))
	}
	return rule
}

// Matches reports whether every condition holds for the packet. It stops at
// the first failing condition; a rule without conditions always matches.
func (t TestRule) Matches(dhcp *model.DHCPPacket, ip *model.IPv4Packet) (bool, error) {
	for _, c := range t.Conditions {
		ok, err := c.Evaluate(dhcp, ip)
		if err != nil {
			return false, &ClassificationError{Condition: c.Name, Err: err}
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Unrecognized returns the attribute names the rule carries but never evaluates.
func (t TestRule) Unrecognized() []string {
	var names []string
	for _, c := range t.Conditions {
		if c.Kind == KindUnknown {
			names = append(names, c.Name)
		}
	}
	return names
}
