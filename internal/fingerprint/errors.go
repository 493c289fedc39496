package fingerprint

import (
	"errors"
	"fmt"
)

const (
	errorCodeSignaturesNotFound  = "SIGNATURES_NOT_FOUND"
	errorCodeSignaturesMalformed = "SIGNATURES_MALFORMED"
	errorCodeBadWeight           = "SIGNATURES_BAD_WEIGHT"
	errorCodeClassificationFault = "CLASSIFICATION_FAULT"
	errorCodeNoMatch             = "NO_MATCH"
)

var (
	// ErrSignaturesNotFound indicates the signature file could not be opened.
	ErrSignaturesNotFound = errors.New("signature source not found")
	// ErrSignaturesMalformed indicates the signature file is not a valid fingerprint tree.
	ErrSignaturesMalformed = errors.New("malformed signature source")
	// ErrBadWeight indicates a test weight that is not a non-negative integer.
	ErrBadWeight = errors.New("invalid test weight")

	// ErrNoDHCPPacket indicates the packet set holds no DHCP layer.
	ErrNoDHCPPacket = errors.New("no DHCP packet in packet set")
	// ErrNoMatch indicates no fingerprint reached a weight above the floor.
	ErrNoMatch = errors.New("no fingerprint matched")
	// ErrMalformedOption indicates option data too short for its declared encoding.
	ErrMalformedOption = errors.New("malformed DHCP option")
	// ErrBadDeclaredValue indicates a signature value that cannot be compared numerically.
	ErrBadDeclaredValue = errors.New("invalid declared condition value")
)

// LoadError is returned when a signature database cannot be built.
type LoadError struct {
	Source string
	Code   string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load signatures from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func newLoadError(source string, kind error, format string, args ...interface{}) *LoadError {
	code := errorCodeSignaturesMalformed
	switch kind {
	case ErrSignaturesNotFound:
		code = errorCodeSignaturesNotFound
	case ErrBadWeight:
		code = errorCodeBadWeight
	}
	return &LoadError{
		Source: source,
		Code:   code,
		Err:    fmt.Errorf("%w: "+format, append([]interface{}{kind}, args...)...),
	}
}

// ClassificationError is an internal fault raised while evaluating a packet
// set. It never escapes Classify; Match returns it for callers that need to
// tell faults apart from a plain miss.
type ClassificationError struct {
	Fingerprint string // Label of the fingerprint being scored, if known
	Condition   string // Attribute name of the failing condition, if known
	Err         error
}

func (e *ClassificationError) Error() string {
	switch {
	case e.Fingerprint != "" && e.Condition != "":
		return fmt.Sprintf("classification fault in %q condition %s: %v", e.Fingerprint, e.Condition, e.Err)
	case e.Fingerprint != "":
		return fmt.Sprintf("classification fault in %q: %v", e.Fingerprint, e.Err)
	default:
		return fmt.Sprintf("classification fault: %v", e.Err)
	}
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// IsFault reports whether err is a classification fault rather than a miss.
func IsFault(err error) bool {
	var fault *ClassificationError
	return errors.As(err, &fault)
}

// ErrorCode resolves an error to its fingerprint error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var loadErr *LoadError
	if errors.As(err, &loadErr) && loadErr.Code != "" {
		return loadErr.Code
	}

	switch {
	case IsFault(err):
		return errorCodeClassificationFault
	case errors.Is(err, ErrNoMatch), errors.Is(err, ErrNoDHCPPacket):
		return errorCodeNoMatch
	case errors.Is(err, ErrSignaturesNotFound):
		return errorCodeSignaturesNotFound
	case errors.Is(err, ErrBadWeight):
		return errorCodeBadWeight
	default:
		return errorCodeSignaturesMalformed
	}
}

// ExitCode maps fingerprint errors to CLI exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch {
	case errors.Is(err, ErrSignaturesNotFound):
		return 2
	case errors.Is(err, ErrSignaturesMalformed),
		errors.Is(err, ErrBadWeight):
		return 3
	default:
		return 1
	}
}

// Suggestions provides CLI hints for fingerprint errors.
func Suggestions(err error) []string {
	if err == nil {
		return nil
	}

	switch ErrorCode(err) {
	case errorCodeSignaturesNotFound:
		return []string{
			"Check the path given with --signatures",
			"Omit --signatures to use the built-in Satori DHCP signatures",
		}
	case errorCodeSignaturesMalformed:
		return []string{
			"Validate the file:         dhcpfp signatures check <path>",
			"Expected layout:           <fingerprints><fingerprint><dhcp_tests><test .../>",
		}
	case errorCodeBadWeight:
		return []string{
			"Every test weight must be a non-negative integer, e.g. weight=\"4\"",
		}
	default:
		return nil
	}
}
