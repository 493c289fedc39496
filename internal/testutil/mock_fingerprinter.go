package testutil

import (
	"github.com/stretchr/testify/mock"

	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// MockFingerprinter is a mock implementation of fingerprint.OSFingerprinter
type MockFingerprinter struct {
	mock.Mock
	FingerprinterName string
}

func (m *MockFingerprinter) Name() string {
	return m.FingerprinterName
}

func (m *MockFingerprinter) OperatingSystems(packets []model.Packet) ([]string, bool) {
	args := m.Called(packets)
	labels, _ := args.Get(0).([]string)
	return labels, args.Bool(1)
}
