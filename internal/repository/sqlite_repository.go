package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// ErrEmptyKey is returned by the key/value operations for an empty key.
var ErrEmptyKey = errors.New("key must not be empty")

// filterColumns lists the columns GetClassifications may filter on, with the
// coercion applied to the filter value.
var filterColumns = map[string]func(interface{}) (interface{}, error){
	"run_id":        func(v interface{}) (interface{}, error) { return cast.ToStringE(v) },
	"client_mac":    func(v interface{}) (interface{}, error) { return cast.ToStringE(v) },
	"fingerprinter": func(v interface{}) (interface{}, error) { return cast.ToStringE(v) },
	"message_type":  func(v interface{}) (interface{}, error) { return cast.ToStringE(v) },
	"matched":       func(v interface{}) (interface{}, error) { return cast.ToBoolE(v) },
	"weight":        func(v interface{}) (interface{}, error) { return cast.ToIntE(v) },
}

const classificationColumns = `id, run_id, timestamp, client_mac, client_ip, transaction_id, message_type,
	vendor_class, option_list, fingerprinter, labels, weight, matched`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	repo := &SQLiteRepository{db: db}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS classifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			client_mac TEXT,
			client_ip TEXT,
			transaction_id INTEGER NOT NULL,
			message_type TEXT,
			vendor_class TEXT,
			option_list TEXT,
			fingerprinter TEXT NOT NULL,
			labels TEXT,
			weight INTEGER NOT NULL,
			matched BOOLEAN NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_classifications_unique
			ON classifications (run_id, timestamp, client_mac, transaction_id, fingerprinter);`,
		`CREATE INDEX IF NOT EXISTS idx_classifications_mac ON classifications (client_mac);`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := r.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Helper for converting net.IP to string for DB stores
func ipToString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

// Helper for converting DB string to net.IP
func stringToIP(s string) net.IP {
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}

func sliceToJSON(slice []string) string {
	if len(slice) == 0 {
		return ""
	}
	b, err := json.Marshal(slice)
	if err != nil {
		return ""
	}
	return string(b)
}

func jsonArrayToSlice(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	if err := json.Unmarshal([]byte(s), &result); err == nil {
		return result
	}
	// fallback
	return strings.Split(s, ",")
}

// NormalizeMAC lowercases a MAC address and uses colons as separators.
func NormalizeMAC(mac string) string {
	return strings.ReplaceAll(strings.ToLower(mac), "-", ":")
}

func classificationArgs(c *model.Classification) []interface{} {
	return []interface{}{
		c.RunID,
		c.Timestamp.UTC().Format(time.RFC3339Nano),
		NormalizeMAC(c.ClientMAC),
		ipToString(c.ClientIP),
		c.TransactionID,
		c.MessageType,
		c.VendorClass,
		c.OptionList,
		c.Fingerprinter,
		sliceToJSON(c.Labels),
		c.Weight,
		c.Matched,
	}
}

const insertClassification = `INSERT INTO classifications (run_id, timestamp, client_mac, client_ip, transaction_id,
	message_type, vendor_class, option_list, fingerprinter, labels, weight, matched)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

func (r *SQLiteRepository) AddClassification(classification *model.Classification) error {
	if err := classification.Validate(); err != nil {
		return fmt.Errorf("invalid classification: %w", err)
	}
	res, err := r.db.Exec(insertClassification, classificationArgs(classification)...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err == nil {
		classification.ID = id
	}
	return nil
}

// AddClassifications inserts multiple classifications in a single transaction.
// Rows already stored for the same run, frame and fingerprinter are skipped.
func (r *SQLiteRepository) AddClassifications(classifications []*model.Classification) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertClassification)
	if err != nil {
		return err
	}
	defer stmt.Close()

	skipped := 0
	for _, c := range classifications {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid classification for %s: %w", c.ClientMAC, err)
		}
		res, err := stmt.Exec(classificationArgs(c)...)
		if err != nil {
			// Check if it's a constraint violation (entry already exists)
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
				skipped++
				continue
			}
			return err
		}
		if id, err := res.LastInsertId(); err == nil {
			c.ID = id
		}
	}
	if skipped > 0 {
		log.Debug().Int("skipped", skipped).Msg("Skipped duplicate classifications")
	}
	return tx.Commit()
}

// GetClassifications returns stored classifications ordered by time. Filter
// keys are column names; values are coerced to the column type.
func (r *SQLiteRepository) GetClassifications(filters map[string]interface{}) ([]*model.Classification, error) {
	query := `SELECT ` + classificationColumns + ` FROM classifications`
	params := []interface{}{}

	if len(filters) > 0 {
		keys := make([]string, 0, len(filters))
		for key := range filters {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		conditions := []string{}
		for _, key := range keys {
			coerce, ok := filterColumns[key]
			if !ok {
				return nil, fmt.Errorf("unsupported filter %q", key)
			}
			value, err := coerce(filters[key])
			if err != nil {
				return nil, fmt.Errorf("filter %q: %w", key, err)
			}
			if key == "client_mac" {
				value = NormalizeMAC(value.(string))
			}
			conditions = append(conditions, key+" = ?")
			params = append(params, value)
		}
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp, id"

	rows, err := r.db.Query(query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classifications []*model.Classification
	for rows.Next() {
		var (
			c                      model.Classification
			timestampStr, clientIP string
			clientMAC, messageType sql.NullString
			vendor, optionList     sql.NullString
			labelsStr              sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.RunID, &timestampStr, &clientMAC, &clientIP, &c.TransactionID, &messageType,
			&vendor, &optionList, &c.Fingerprinter, &labelsStr, &c.Weight, &c.Matched); err != nil {
			return nil, err
		}
		c.Timestamp, _ = time.Parse(time.RFC3339Nano, timestampStr)
		c.ClientMAC = clientMAC.String
		c.ClientIP = stringToIP(clientIP)
		c.MessageType = messageType.String
		c.VendorClass = vendor.String
		c.OptionList = optionList.String
		c.Labels = jsonArrayToSlice(labelsStr.String)
		classifications = append(classifications, &c)
	}
	return classifications, rows.Err()
}

func (r *SQLiteRepository) GetClassificationsByMAC(mac string) ([]*model.Classification, error) {
	if !model.IsValidMACAddress(mac) {
		return nil, fmt.Errorf("invalid MAC address %q", mac)
	}
	return r.GetClassifications(map[string]interface{}{"client_mac": mac})
}

func (r *SQLiteRepository) SetKeyValue(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := r.db.Exec(`INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value;`, key, value)
	return err
}

func (r *SQLiteRepository) GetKeyValue(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	var value string
	err := r.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *SQLiteRepository) DeleteKeyValue(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := r.db.Exec(`DELETE FROM metadata WHERE key = ?`, key)
	return err
}

func (r *SQLiteRepository) GetAllKeyValues() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) Commit() error {
	// No-op for now (autocommit)
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
