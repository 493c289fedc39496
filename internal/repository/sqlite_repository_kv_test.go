package repository

import (
	"os"
	"testing"
)

func TestSQLiteRepository_KeyValueStore(t *testing.T) {
	// Create a temporary database file
	tmpFile, err := os.CreateTemp("", "test_kv_*.sqlite")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	repo, err := NewSQLiteRepository(tmpPath)
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	t.Run("SetKeyValue and GetKeyValue", func(t *testing.T) {
		if err := repo.SetKeyValue("signatures", "builtin:dhcp.xml"); err != nil {
			t.Fatalf("SetKeyValue failed: %v", err)
		}

		value, exists, err := repo.GetKeyValue("signatures")
		if err != nil {
			t.Fatalf("GetKeyValue failed: %v", err)
		}
		if !exists {
			t.Error("Expected key to exist")
		}
		if value != "builtin:dhcp.xml" {
			t.Errorf("Expected 'builtin:dhcp.xml', got '%s'", value)
		}
	})

	t.Run("GetKeyValue for non-existent key", func(t *testing.T) {
		value, exists, err := repo.GetKeyValue("non_existent_key")
		if err != nil {
			t.Fatalf("GetKeyValue failed: %v", err)
		}
		if exists {
			t.Error("Expected key to not exist")
		}
		if value != "" {
			t.Errorf("Expected empty string, got '%s'", value)
		}
	})

	t.Run("SetKeyValue updates existing key", func(t *testing.T) {
		if err := repo.SetKeyValue("last_run", "run-1"); err != nil {
			t.Fatalf("SetKeyValue failed: %v", err)
		}
		if err := repo.SetKeyValue("last_run", "run-2"); err != nil {
			t.Fatalf("SetKeyValue (update) failed: %v", err)
		}

		value, exists, err := repo.GetKeyValue("last_run")
		if err != nil {
			t.Fatalf("GetKeyValue failed: %v", err)
		}
		if !exists || value != "run-2" {
			t.Errorf("Expected 'run-2', got '%s' (exists=%v)", value, exists)
		}
	})

	t.Run("DeleteKeyValue", func(t *testing.T) {
		if err := repo.SetKeyValue("delete_key", "to_be_deleted"); err != nil {
			t.Fatalf("SetKeyValue failed: %v", err)
		}
		if err := repo.DeleteKeyValue("delete_key"); err != nil {
			t.Fatalf("DeleteKeyValue failed: %v", err)
		}

		_, exists, err := repo.GetKeyValue("delete_key")
		if err != nil {
			t.Fatalf("GetKeyValue failed: %v", err)
		}
		if exists {
			t.Error("Expected key to not exist after deletion")
		}
	})

	t.Run("GetAllKeyValues", func(t *testing.T) {
		testData := map[string]string{
			"key1": "value1",
			"key2": "value2",
			"key3": "value3",
		}
		for k, v := range testData {
			if err := repo.SetKeyValue(k, v); err != nil {
				t.Fatalf("SetKeyValue failed for %s: %v", k, err)
			}
		}

		allKV, err := repo.GetAllKeyValues()
		if err != nil {
			t.Fatalf("GetAllKeyValues failed: %v", err)
		}
		for k, v := range testData {
			if allKV[k] != v {
				t.Errorf("Expected allKV[%s] = '%s', got '%s'", k, v, allKV[k])
			}
		}
	})

	t.Run("empty key returns error", func(t *testing.T) {
		if err := repo.SetKeyValue("", "value"); err == nil {
			t.Error("Expected error for empty key")
		}
		if _, _, err := repo.GetKeyValue(""); err == nil {
			t.Error("Expected error for empty key")
		}
		if err := repo.DeleteKeyValue(""); err == nil {
			t.Error("Expected error for empty key")
		}
	})
}
