package parser

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultErrorThreshold is the number of decode errors tolerated per capture.
const DefaultErrorThreshold = 100

// ErrorHandler defines the interface for handling DHCP frame decoding errors
type ErrorHandler interface {
	// HandleDecodeError handles a frame that could not be decoded.
	// A non-nil return value stops parsing.
	HandleDecodeError(err *DecodeError) error
	// SetErrorThreshold sets the maximum number of errors before stopping processing
	SetErrorThreshold(threshold int)
	// GetErrorCount returns the current error count
	GetErrorCount() int
	// IsThresholdExceeded checks if the error threshold has been exceeded
	IsThresholdExceeded() bool
	Reset()
}

// DecodeError represents a frame on the DHCP ports that gopacket could not decode
type DecodeError struct {
	Layer       string          // The layer that failed, e.g. "DHCPv4"
	Frame       int             // 1-based frame number in the capture
	Packet      gopacket.Packet // The packet that caused the error (optional, may be nil)
	Err         error           // The underlying error
	Timestamp   time.Time       // Capture timestamp of the frame
	Recoverable bool            // Whether parsing may continue
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e.Packet != nil {
		return fmt.Sprintf("decode error [%s] in frame %d at %s: %s (packet length: %d)",
			e.Layer, e.Frame, e.Timestamp.Format(time.RFC3339), e.Err.Error(), e.Packet.Metadata().Length)
	}
	return fmt.Sprintf("decode error [%s] in frame %d at %s: %s",
		e.Layer, e.Frame, e.Timestamp.Format(time.RFC3339), e.Err.Error())
}

// Unwrap returns the underlying error for error unwrapping
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsRecoverable returns whether the error allows continued processing
func (e *DecodeError) IsRecoverable() bool {
	return e.Recoverable
}

// PacketInfo returns packet details for debugging
func (e *DecodeError) PacketInfo() map[string]interface{} {
	info := make(map[string]interface{})
	if e.Packet == nil {
		return info
	}
	metadata := e.Packet.Metadata()
	info["length"] = metadata.Length
	info["truncated"] = metadata.Truncated
	data := e.Packet.Data()
	info["raw_data_length"] = len(data)
	// First 64 bytes only
	if len(data) > 64 {
		info["raw_data_preview"] = fmt.Sprintf("%x...", data[:64])
	} else {
		info["raw_data_preview"] = fmt.Sprintf("%x", data)
	}
	return info
}

// NoOpErrorHandler is an error handler that does nothing
type NoOpErrorHandler struct{}

func NewNoOpErrorHandler() ErrorHandler {
	return &NoOpErrorHandler{}
}

func (h *NoOpErrorHandler) HandleDecodeError(err *DecodeError) error {
	return nil
}

func (h *NoOpErrorHandler) SetErrorThreshold(threshold int) {}

func (h *NoOpErrorHandler) GetErrorCount() int {
	return 0
}

func (h *NoOpErrorHandler) IsThresholdExceeded() bool {
	return false
}

func (h *NoOpErrorHandler) Reset() {}

// DefaultErrorHandler logs decode errors and stops parsing once the
// threshold is reached or an unrecoverable error occurs.
type DefaultErrorHandler struct {
	mu                sync.RWMutex
	errorCount        int
	errorThreshold    int
	logger            zerolog.Logger
	thresholdExceeded bool
}

// NewDefaultErrorHandler uses the global zerolog logger when logger is nil.
func NewDefaultErrorHandler(logger *zerolog.Logger) *DefaultErrorHandler {
	if logger == nil {
		logger = &log.Logger
	}
	return &DefaultErrorHandler{
		errorThreshold: DefaultErrorThreshold,
		logger:         logger.With().Str("component", "parser").Logger(),
	}
}

func (h *DefaultErrorHandler) HandleDecodeError(err *DecodeError) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.errorCount++

	if err.IsRecoverable() {
		h.logger.Warn().
			Err(err.Err).
			Str("layer", err.Layer).
			Int("frame", err.Frame).
			Msg("Skipping undecodable frame")
		h.logger.Debug().Fields(err.PacketInfo()).Msg("Packet info")
	} else {
		h.logger.Error().
			Err(err.Err).
			Str("layer", err.Layer).
			Int("frame", err.Frame).
			Fields(err.PacketInfo()).
			Msg("Unrecoverable decode error")
		return fmt.Errorf("frame %d: %w", err.Frame, err)
	}

	if h.errorCount >= h.errorThreshold {
		h.thresholdExceeded = true
		return fmt.Errorf("error threshold exceeded (%d errors), stopping processing", h.errorThreshold)
	}
	return nil
}

func (h *DefaultErrorHandler) SetErrorThreshold(threshold int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errorThreshold = threshold
}

func (h *DefaultErrorHandler) GetErrorCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.errorCount
}

func (h *DefaultErrorHandler) IsThresholdExceeded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.thresholdExceeded
}

func (h *DefaultErrorHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errorCount = 0
	h.thresholdExceeded = false
}
