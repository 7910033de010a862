package db

import (
	"fmt"
	"strconv"

	"github.com/felo/classifier-console/internal/api"
)

// View modes of the email list
const (
	ViewCards = "cards"
	ViewTable = "table"
)

const (
	keyView      = "view"
	keySortBy    = "sort_by"
	keySortOrder = "sort_order"
	keyPageSize  = "page_size"

	maxPageSize = 500
)

// Preferences are the list settings remembered between visits
type Preferences struct {
	View      string
	SortBy    string
	SortOrder string
	PageSize  int
}

// DefaultPreferences returns cards sorted newest first, 100 per page
func DefaultPreferences() Preferences {
	return Preferences{
		View:      ViewCards,
		SortBy:    api.SortByReceivedAt,
		SortOrder: api.SortDesc,
		PageSize:  api.DefaultLimit,
	}
}

// ValidView reports whether v is a known view mode
func ValidView(v string) bool {
	return v == ViewCards || v == ViewTable
}

// Sanitize replaces unsupported values with defaults
func (p Preferences) Sanitize() Preferences {
	def := DefaultPreferences()
	if !ValidView(p.View) {
		p.View = def.View
	}
	if !api.ValidSortBy(p.SortBy) {
		p.SortBy = def.SortBy
	}
	if !api.ValidSortOrder(p.SortOrder) {
		p.SortOrder = def.SortOrder
	}
	if p.PageSize <= 0 || p.PageSize > maxPageSize {
		p.PageSize = def.PageSize
	}
	return p
}

// LoadPreferences reads stored preferences, falling back to defaults
func (db *DB) LoadPreferences() (Preferences, error) {
	rows, err := db.Query(`SELECT key, value FROM settings WHERE key IN (?, ?, ?, ?)`,
		keyView, keySortBy, keySortOrder, keyPageSize)
	if err != nil {
		return DefaultPreferences(), fmt.Errorf("failed to load preferences: %w", err)
	}
	defer rows.Close()

	var p Preferences
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return DefaultPreferences(), fmt.Errorf("failed to scan preference: %w", err)
		}
		switch key {
		case keyView:
			p.View = value
		case keySortBy:
			p.SortBy = value
		case keySortOrder:
			p.SortOrder = value
		case keyPageSize:
			p.PageSize, _ = strconv.Atoi(value)
		}
	}
	if err := rows.Err(); err != nil {
		return DefaultPreferences(), fmt.Errorf("error iterating preferences: %w", err)
	}

	return p.Sanitize(), nil
}

// SavePreferences stores p in a single transaction
func (db *DB) SavePreferences(p Preferences) error {
	p = p.Sanitize()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	values := [][2]string{
		{keyView, p.View},
		{keySortBy, p.SortBy},
		{keySortOrder, p.SortOrder},
		{keyPageSize, strconv.Itoa(p.PageSize)},
	}
	for _, kv := range values {
		if _, err := stmt.Exec(kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to save preference %s: %w", kv[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
