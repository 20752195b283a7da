package models

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/timshannon/bolthold"
)

// Preference operations. Missing keys yield the supplied default.

// GetString retrieves a string preference
func (db *Database) GetString(key, def string) (string, error) {
	var pref Preference
	err := db.store.Get(key, &pref)
	if errors.Is(err, bolthold.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return pref.Value, nil
}

// SetString stores a string preference
func (db *Database) SetString(key, value string) error {
	if err := db.store.Upsert(key, &Preference{Key: key, Value: value}); err != nil {
		return fmt.Errorf("failed to write preference %s: %w", key, err)
	}
	return nil
}

// GetInt64 retrieves an int64 preference
func (db *Database) GetInt64(key string, def int64) (int64, error) {
	raw, err := db.GetString(key, "")
	if err != nil || raw == "" {
		return def, err
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def, fmt.Errorf("preference %s is not an integer: %w", key, err)
	}
	return value, nil
}

// SetInt64 stores an int64 preference
func (db *Database) SetInt64(key string, value int64) error {
	return db.SetString(key, strconv.FormatInt(value, 10))
}

// GetInt retrieves an int preference
func (db *Database) GetInt(key string, def int) (int, error) {
	value, err := db.GetInt64(key, int64(def))
	return int(value), err
}

// SetInt stores an int preference
func (db *Database) SetInt(key string, value int) error {
	return db.SetInt64(key, int64(value))
}

// GetBool retrieves a bool preference
func (db *Database) GetBool(key string, def bool) (bool, error) {
	raw, err := db.GetString(key, "")
	if err != nil || raw == "" {
		return def, err
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("preference %s is not a boolean: %w", key, err)
	}
	return value, nil
}

// SetBool stores a bool preference
func (db *Database) SetBool(key string, value bool) error {
	return db.SetString(key, strconv.FormatBool(value))
}
