package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dani-ai/dani/internal/model"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrStore wraps every transport or backend failure of the key table.
	ErrStore = errors.New("store error")

	ErrKeyNotFound    = errors.New("api key not found")
	ErrDuplicateValue = errors.New("duplicate api key value")
)

const mysqlDuplicateEntry = 1062

// APIKeysRepository is the data access layer of the api_key table. Owner scoped
// operations only ever touch rows whose user_id matches ownerID.
type APIKeysRepository interface {
	Create(ctx context.Context, k model.APIKey) error
	ListByOwner(ctx context.Context, ownerID string) ([]model.APIKey, error)
	GetByID(ctx context.Context, ownerID, id string) (*model.APIKey, error)
	Rename(ctx context.Context, ownerID, id, name string) error
	Delete(ctx context.Context, ownerID, id string) error

	// GetByValue returns (nil, nil) when no row carries value.
	GetByValue(ctx context.Context, value string) (*model.APIKey, error)
	GetUsage(ctx context.Context, value string) (int64, error)
	SetUsage(ctx context.Context, value string, usage int64) error
	// IncrementUsageBelowLimit adds one to usage in a single statement, only
	// while usage < request_limit. It reports whether a row was updated.
	IncrementUsageBelowLimit(ctx context.Context, value string) (bool, error)
	// RefundUsage takes back one use counted by IncrementUsageBelowLimit.
	// The counter never goes below zero.
	RefundUsage(ctx context.Context, value string) error
}

type APIKeysRepositoryImpl struct {
	db *sqlx.DB
}

func NewAPIKeysRepository(db *sqlx.DB) *APIKeysRepositoryImpl {
	return &APIKeysRepositoryImpl{db: db}
}

var _ APIKeysRepository = (*APIKeysRepositoryImpl)(nil)

// usage is a reserved word in MySQL, hence the backticks.
const selectColumns = "SELECT id, name, value, `usage`, request_limit, user_id FROM api_key"

func storeErr(op string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %s: %w", ErrStore, op, ErrDuplicateValue)
	}
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}

func (r *APIKeysRepositoryImpl) Create(ctx context.Context, k model.APIKey) error {
	const q = "INSERT INTO api_key (id, name, value, `usage`, request_limit, user_id) VALUES (?, ?, ?, 0, ?, ?)"
	if _, err := r.db.ExecContext(ctx, q, k.ID, k.Name, k.Value, k.RequestLimit, k.UserID); err != nil {
		return storeErr("insert api key", err)
	}
	return nil
}

func (r *APIKeysRepositoryImpl) ListByOwner(ctx context.Context, ownerID string) ([]model.APIKey, error) {
	rows := []model.APIKey{}
	if err := r.db.SelectContext(ctx, &rows, selectColumns+" WHERE user_id = ?", ownerID); err != nil {
		return nil, storeErr("list api keys", err)
	}
	return rows, nil
}

func (r *APIKeysRepositoryImpl) GetByID(ctx context.Context, ownerID, id string) (*model.APIKey, error) {
	var k model.APIKey
	err := r.db.GetContext(ctx, &k, selectColumns+" WHERE id = ? AND user_id = ? LIMIT 1", id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, storeErr("get api key", err)
	}
	return &k, nil
}

// Rename updates the display name only. MySQL reports zero affected rows when
// the name is unchanged, so a zero count is confirmed with a lookup.
func (r *APIKeysRepositoryImpl) Rename(ctx context.Context, ownerID, id, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE api_key SET name = ? WHERE id = ? AND user_id = ?`, name, id, ownerID)
	if err != nil {
		return storeErr("rename api key", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("rename api key", err)
	}
	if n > 0 {
		return nil
	}
	_, err = r.GetByID(ctx, ownerID, id)
	return err
}

func (r *APIKeysRepositoryImpl) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_key WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return storeErr("delete api key", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("delete api key", err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (r *APIKeysRepositoryImpl) GetByValue(ctx context.Context, value string) (*model.APIKey, error) {
	var k model.APIKey
	err := r.db.GetContext(ctx, &k, selectColumns+" WHERE value = ? LIMIT 1", value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get api key by value", err)
	}
	return &k, nil
}

func (r *APIKeysRepositoryImpl) GetUsage(ctx context.Context, value string) (int64, error) {
	var usage int64
	err := r.db.QueryRowxContext(ctx, "SELECT `usage` FROM api_key WHERE value = ? LIMIT 1", value).Scan(&usage)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrKeyNotFound
	}
	if err != nil {
		return 0, storeErr("get usage", err)
	}
	return usage, nil
}

func (r *APIKeysRepositoryImpl) SetUsage(ctx context.Context, value string, usage int64) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE api_key SET `usage` = ? WHERE value = ?", usage, value); err != nil {
		return storeErr("set usage", err)
	}
	return nil
}

func (r *APIKeysRepositoryImpl) IncrementUsageBelowLimit(ctx context.Context, value string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE api_key SET `usage` = `usage` + 1 WHERE value = ? AND `usage` < request_limit", value)
	if err != nil {
		return false, storeErr("increment usage", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("increment usage", err)
	}
	return n > 0, nil
}

func (r *APIKeysRepositoryImpl) RefundUsage(ctx context.Context, value string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE api_key SET `usage` = `usage` - 1 WHERE value = ? AND `usage` > 0", value); err != nil {
		return storeErr("refund usage", err)
	}
	return nil
}
