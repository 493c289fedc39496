package testutil

import (
	"github.com/stretchr/testify/mock"

	"github.com/InfraSecConsult/dhcp-osfp-go/internal/parser"
)

// MockErrorHandler is a mock implementation of parser.ErrorHandler
type MockErrorHandler struct {
	mock.Mock
}

func (m *MockErrorHandler) HandleDecodeError(err *parser.DecodeError) error {
	args := m.Called(err)
	return args.Error(0)
}

func (m *MockErrorHandler) SetErrorThreshold(threshold int) {
	m.Called(threshold)
}

func (m *MockErrorHandler) GetErrorCount() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockErrorHandler) IsThresholdExceeded() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockErrorHandler) Reset() {
	m.Called()
}
