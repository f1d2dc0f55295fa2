package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version the engine expects.
// The engine tolerates any version it has a migration path to; a database
// it cannot migrate up to this version is a fatal startup error.
const ExpectedSchemaVersion = 3

// Migration is an additive, reversible schema change. Up and Down run inside
// a single transaction each.
type Migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
	Down        func(*sql.Tx) error
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Accounts, categories, transactions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE accounts (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('cash', 'bank', 'investment', 'other')),
					currency TEXT NOT NULL CHECK (length(currency) = 3),
					initial_balance TEXT NOT NULL,
					note TEXT,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)`,
				`CREATE INDEX idx_accounts_user ON accounts(user_id)`,

				`CREATE TABLE categories (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('income', 'expense', 'transfer', 'all')),
					color TEXT CHECK (color IS NULL OR length(color) = 7),
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)`,

				`CREATE TABLE transactions (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
					type TEXT NOT NULL CHECK (type IN ('income', 'expense', 'transfer')),
					amount TEXT NOT NULL CHECK (CAST(amount AS REAL) > 0),
					category_id TEXT REFERENCES categories(id) ON DELETE SET NULL,
					date TEXT NOT NULL,
					note TEXT,
					transfer_id TEXT,
					direction TEXT CHECK (direction IS NULL OR direction IN ('in', 'out')),
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)`,
				// Hot path: ordered history reads for balance folds.
				`CREATE INDEX idx_transactions_account_date ON transactions(account_id, date, created_at, id)`,
				`CREATE INDEX idx_transactions_transfer ON transactions(transfer_id) WHERE transfer_id IS NOT NULL`,
			})
		},
		Down: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`DROP TABLE transactions`,
				`DROP TABLE categories`,
				`DROP TABLE accounts`,
			})
		},
	},
	{
		Version:     2,
		Description: "Third-party identity links",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE identities (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					provider TEXT NOT NULL,
					provider_user_id TEXT NOT NULL,
					access_token TEXT,
					refresh_token TEXT,
					expires_at TEXT,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					UNIQUE (provider, provider_user_id)
				)`,
				`CREATE INDEX idx_identities_user ON identities(user_id)`,
			})
		},
		Down: func(tx *sql.Tx) error {
			return execAll(tx, []string{`DROP TABLE identities`})
		},
	},
	{
		Version:     3,
		Description: "Reversal links on transactions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE transactions ADD COLUMN reversal_of TEXT`,
			})
		},
		Down: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE transactions DROP COLUMN reversal_of`,
			})
		},
	},
}

// Migrate brings the database up to ExpectedSchemaVersion, applying each
// pending migration in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		slog.Info("applied migration", "version", migration.Version, "description", migration.Description)
	}

	var finalVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion); err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}
	return nil
}

// MigrateDown rolls the schema back to targetVersion. Intended for
// operational rollbacks, not application code.
func (s *Store) MigrateDown(ctx context.Context, targetVersion int) error {
	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if migration.Version > currentVersion || migration.Version <= targetVersion {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := migration.Down(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("rollback of migration %d failed: %w", migration.Version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version-1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit rollback of migration %d: %w", migration.Version, err)
		}

		slog.Info("rolled back migration", "version", migration.Version, "description", migration.Description)
	}
	return nil
}
