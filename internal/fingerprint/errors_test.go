package fingerprint

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		exit int
	}{
		{"nil", nil, "", 0},
		{"not found", newLoadError("x.xml", ErrSignaturesNotFound, "missing"), "SIGNATURES_NOT_FOUND", 2},
		{"malformed", newLoadError("x.xml", ErrSignaturesMalformed, "bad"), "SIGNATURES_MALFORMED", 3},
		{"bad weight", newLoadError("x.xml", ErrBadWeight, "weight"), "SIGNATURES_BAD_WEIGHT", 3},
		{"wrapped bad weight", fmt.Errorf("startup: %w", ErrBadWeight), "SIGNATURES_BAD_WEIGHT", 3},
		{"no match", ErrNoMatch, "NO_MATCH", 1},
		{"no dhcp", ErrNoDHCPPacket, "NO_MATCH", 1},
		{"fault", &ClassificationError{Err: ErrMalformedOption}, "CLASSIFICATION_FAULT", 1},
		{"other", errors.New("boom"), "SIGNATURES_MALFORMED", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
			assert.Equal(t, tt.exit, ExitCode(tt.err))
		})
	}
}

func TestLoadError_Message(t *testing.T) {
	err := newLoadError("sigs/dhcp.xml", ErrBadWeight, "fingerprint %q test %d", "Windows 10", 2)
	assert.Equal(t, `load signatures from sigs/dhcp.xml: invalid test weight: fingerprint "Windows 10" test 2`, err.Error())
	assert.ErrorIs(t, err, ErrBadWeight)
}

func TestClassificationError_Message(t *testing.T) {
	tests := []struct {
		err      *ClassificationError
		expected string
	}{
		{
			&ClassificationError{Fingerprint: "Linux - Ubuntu", Condition: "dhcpoption57", Err: ErrMalformedOption},
			`classification fault in "Linux - Ubuntu" condition dhcpoption57: malformed DHCP option`,
		},
		{
			&ClassificationError{Fingerprint: "Linux - Ubuntu", Err: ErrMalformedOption},
			`classification fault in "Linux - Ubuntu": malformed DHCP option`,
		},
		{
			&ClassificationError{Err: errors.New("panic: nil")},
			`classification fault: panic: nil`,
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.err.Error())
	}
}

func TestSuggestions(t *testing.T) {
	assert.Nil(t, Suggestions(nil))
	assert.Nil(t, Suggestions(ErrNoMatch))
	assert.NotEmpty(t, Suggestions(newLoadError("x", ErrSignaturesNotFound, "missing")))
	assert.NotEmpty(t, Suggestions(newLoadError("x", ErrSignaturesMalformed, "bad")))
	assert.NotEmpty(t, Suggestions(newLoadError("x", ErrBadWeight, "bad")))
}
