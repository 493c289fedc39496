package testutil

import (
	"github.com/stretchr/testify/mock"

	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// MockRepository is a mock implementation of repository.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) AddClassification(classification *model.Classification) error {
	args := m.Called(classification)
	return args.Error(0)
}

func (m *MockRepository) GetClassifications(filters map[string]interface{}) ([]*model.Classification, error) {
	args := m.Called(filters)
	classifications, _ := args.Get(0).([]*model.Classification)
	return classifications, args.Error(1)
}

func (m *MockRepository) GetClassificationsByMAC(mac string) ([]*model.Classification, error) {
	args := m.Called(mac)
	classifications, _ := args.Get(0).([]*model.Classification)
	return classifications, args.Error(1)
}

func (m *MockRepository) AddClassifications(classifications []*model.Classification) error {
	args := m.Called(classifications)
	return args.Error(0)
}

func (m *MockRepository) SetKeyValue(key, value string) error {
	args := m.Called(key, value)
	return args.Error(0)
}

func (m *MockRepository) GetKeyValue(key string) (string, bool, error) {
	args := m.Called(key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockRepository) DeleteKeyValue(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockRepository) GetAllKeyValues() (map[string]string, error) {
	args := m.Called()
	values, _ := args.Get(0).(map[string]string)
	return values, args.Error(1)
}

func (m *MockRepository) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
