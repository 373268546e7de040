package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lotas/tabflow/internal/colors"
)

// Persisted keys of the color assignment. They are always written together.
const (
	KeyDomainColorMap = "domainColorMap"
	KeyColorIndex     = "colorIndex"
)

// GetValue returns the raw value for key, or "", false if it is not set.
func GetValue(ctx context.Context, db *sql.DB, key string) (string, bool, error) {
	var v string
	err := db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&v)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

// SetValues writes all pairs in one transaction.
func SetValues(ctx context.Context, db *sql.DB, values map[string]string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(key) DO UPDATE SET
			   value = excluded.value,
			   updated_at = CURRENT_TIMESTAMP`,
			k, v,
		); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadColorState reads the persisted color assignment. Missing keys yield an
// empty map and a zero cursor.
func LoadColorState(ctx context.Context, db *sql.DB) (colors.State, error) {
	s := colors.State{Domains: make(map[string]string)}

	raw, ok, err := GetValue(ctx, db, KeyDomainColorMap)
	if err != nil {
		return s, err
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &s.Domains); err != nil {
			return s, fmt.Errorf("decode %s: %w", KeyDomainColorMap, err)
		}
	}

	raw, ok, err = GetValue(ctx, db, KeyColorIndex)
	if err != nil {
		return s, err
	}
	if ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return s, fmt.Errorf("decode %s: %w", KeyColorIndex, err)
		}
		s.NextIndex = n
	}
	return s, nil
}

// SaveColorState writes the map and cursor atomically.
func SaveColorState(ctx context.Context, db *sql.DB, s colors.State) error {
	m := s.Domains
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyDomainColorMap, err)
	}
	return SetValues(ctx, db, map[string]string{
		KeyDomainColorMap: string(data),
		KeyColorIndex:     strconv.Itoa(s.NextIndex),
	})
}

// ColorStore adapts a database to colors.Store.
type ColorStore struct {
	DB *sql.DB
}

// LoadColors reads the persisted color assignment.
func (s ColorStore) LoadColors(ctx context.Context) (colors.State, error) {
	return LoadColorState(ctx, s.DB)
}

// SaveColors writes the color assignment in one transaction.
func (s ColorStore) SaveColors(ctx context.Context, state colors.State) error {
	return SaveColorState(ctx, s.DB, state)
}
