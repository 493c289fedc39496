package repository

import (
	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// Repository defines the contract for storing and retrieving OS classification results.
type Repository interface {
	// Classification operations
	AddClassification(classification *model.Classification) error
	GetClassifications(filters map[string]interface{}) ([]*model.Classification, error)
	GetClassificationsByMAC(mac string) ([]*model.Classification, error)
	// Batch classification operations for performance
	AddClassifications(classifications []*model.Classification) error

	// Run metadata
	SetKeyValue(key, value string) error
	GetKeyValue(key string) (string, bool, error)
	DeleteKeyValue(key string) error
	GetAllKeyValues() (map[string]string, error)

	// Transaction operations
	Commit() error
	Close() error
}
