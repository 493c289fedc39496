package testutil

import (
	"github.com/stretchr/testify/mock"

	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// MockPacketParser is a mock implementation of parser.PacketParser
type MockPacketParser struct {
	mock.Mock
}

func (m *MockPacketParser) ParseFile() ([]*model.Observation, error) {
	args := m.Called()
	observations, _ := args.Get(0).([]*model.Observation)
	return observations, args.Error(1)
}
