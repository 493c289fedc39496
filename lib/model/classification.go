package model

import (
	"errors"
	"net"
	"time"
)

// MatchResult holds the fingerprint labels sharing the best weight.
// Labels keep fingerprint load order; duplicates are preserved.
type MatchResult struct {
	Labels []string `json:"labels"`
	Weight int      `json:"weight"`
}

// Matched reports whether at least one label was found.
func (r MatchResult) Matched() bool {
	return len(r.Labels) > 0
}

// Classification is a stored fingerprinting outcome for one observation.
type Classification struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	Timestamp     time.Time `json:"timestamp"`
	ClientMAC     string    `json:"client_mac"`
	ClientIP      net.IP    `json:"client_ip,omitempty"`
	TransactionID uint32    `json:"transaction_id"`
	MessageType   string    `json:"message_type"`
	VendorClass   string    `json:"vendor_class,omitempty"`
	OptionList    string    `json:"option_list"`
	Fingerprinter string    `json:"fingerprinter"`
	Labels        []string  `json:"labels"`
	Weight        int       `json:"weight"`
	Matched       bool      `json:"matched"`
}

func (c *Classification) Validate() error {
	if c.Timestamp.IsZero() {
		return errors.New("timestamp must not be zero")
	}
	if c.ClientMAC != "" && !IsValidMACAddress(c.ClientMAC) {
		return errors.New("invalid client MAC address " + c.ClientMAC)
	}
	if c.Fingerprinter == "" {
		return errors.New("fingerprinter must not be empty")
	}
	if c.Matched && len(c.Labels) == 0 {
		return errors.New("matched classification must carry at least one label")
	}
	if !c.Matched && len(c.Labels) > 0 {
		return errors.New("unmatched classification must not carry labels")
	}
	return nil
}
