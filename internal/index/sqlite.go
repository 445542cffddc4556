package index

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// Index is the SQLite-backed implementation of the record repositories.
type Index struct {
	db *sql.DB
}

// New opens (or creates) the index database at the given path.
func New(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the database connection.
func (i *Index) Close() error {
	return i.db.Close()
}

// Initialize creates the database schema.
func (i *Index) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS stores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		UNIQUE(owner_id, name),
		FOREIGN KEY (owner_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS packages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		store_id INTEGER NOT NULL,
		UNIQUE(store_id, name),
		FOREIGN KEY (store_id) REFERENCES stores(id)
	);

	CREATE INDEX IF NOT EXISTS idx_stores_owner ON stores(owner_id);
	CREATE INDEX IF NOT EXISTS idx_packages_store ON packages(store_id);
	`

	if _, err := i.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Stores returns the store record repository.
func (i *Index) Stores() Repo[StoreRecord] {
	return &storeRepo{db: i.db}
}

// Packages returns the package record repository.
func (i *Index) Packages() Repo[PackageRecord] {
	return &packageRepo{db: i.db}
}

// CreateUser registers a principal and returns its assigned id.
func (i *Index) CreateUser(ctx context.Context, username string) (int64, error) {
	result, err := i.db.ExecContext(ctx, "INSERT INTO users (username) VALUES (?)", username)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return result.LastInsertId()
}

// GetUserByName returns a user record, or nil when the username is unknown.
func (i *Index) GetUserByName(ctx context.Context, username string) (*UserRecord, error) {
	var user UserRecord
	err := i.db.QueryRowContext(ctx, "SELECT id, username FROM users WHERE username = ?", username).
		Scan(&user.ID, &user.Username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &user, nil
}

// whereClause renders a filter as a WHERE clause with placeholder args.
// Keys are sorted so generated SQL is deterministic.
func whereClause(filter Filter) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conditions := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		conditions = append(conditions, key+" = ?")
		args = append(args, filter[key])
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

type storeRepo struct {
	db *sql.DB
}

func (r *storeRepo) Insert(ctx context.Context, record StoreRecord) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO stores (name, owner_id) VALUES (?, ?)", record.Name, record.OwnerID)
	if err != nil {
		return 0, fmt.Errorf("insert store: %w", err)
	}
	return result.LastInsertId()
}

func (r *storeRepo) SelectAll(ctx context.Context, filter Filter) ([]StoreRecord, error) {
	where, args := whereClause(filter)
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, owner_id FROM stores"+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("select stores: %w", err)
	}
	defer rows.Close()

	var records []StoreRecord
	for rows.Next() {
		var record StoreRecord
		if err := rows.Scan(&record.ID, &record.Name, &record.OwnerID); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *storeRepo) SelectOne(ctx context.Context, filter Filter) (*StoreRecord, error) {
	where, args := whereClause(filter)
	var record StoreRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, owner_id FROM stores"+where+" ORDER BY id LIMIT 1", args...).
		Scan(&record.ID, &record.Name, &record.OwnerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select store: %w", err)
	}
	return &record, nil
}

func (r *storeRepo) Delete(ctx context.Context, filter Filter) error {
	where, args := whereClause(filter)
	if _, err := r.db.ExecContext(ctx, "DELETE FROM stores"+where, args...); err != nil {
		return fmt.Errorf("delete stores: %w", err)
	}
	return nil
}

type packageRepo struct {
	db *sql.DB
}

func (r *packageRepo) Insert(ctx context.Context, record PackageRecord) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO packages (name, store_id) VALUES (?, ?)", record.Name, record.StoreID)
	if err != nil {
		return 0, fmt.Errorf("insert package: %w", err)
	}
	return result.LastInsertId()
}

func (r *packageRepo) SelectAll(ctx context.Context, filter Filter) ([]PackageRecord, error) {
	where, args := whereClause(filter)
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, store_id FROM packages"+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("select packages: %w", err)
	}
	defer rows.Close()

	var records []PackageRecord
	for rows.Next() {
		var record PackageRecord
		if err := rows.Scan(&record.ID, &record.Name, &record.StoreID); err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *packageRepo) SelectOne(ctx context.Context, filter Filter) (*PackageRecord, error) {
	where, args := whereClause(filter)
	var record PackageRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, store_id FROM packages"+where+" ORDER BY id LIMIT 1", args...).
		Scan(&record.ID, &record.Name, &record.StoreID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select package: %w", err)
	}
	return &record, nil
}

func (r *packageRepo) Delete(ctx context.Context, filter Filter) error {
	where, args := whereClause(filter)
	if _, err := r.db.ExecContext(ctx, "DELETE FROM packages"+where, args...); err != nil {
		return fmt.Errorf("delete packages: %w", err)
	}
	return nil
}
