package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migration is one schema change with a statement per dialect
type Migration struct {
	Version     int
	Description string
	Postgres    string
	SQLite      string
}

// Migrations returns the schema history in order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			Postgres: `CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				role TEXT,
				password_hash TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			SQLite: `CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE COLLATE NOCASE,
				role TEXT,
				password_hash TEXT,
				created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
		{
			Version:     2,
			Description: "Create members table",
			Postgres: `CREATE TABLE IF NOT EXISTS members (
				id BIGSERIAL PRIMARY KEY,
				ad TEXT NOT NULL,
				soyad TEXT NOT NULL,
				email TEXT UNIQUE,
				telefon TEXT,
				tc_kimlik_no TEXT UNIQUE,
				adres TEXT,
				uyelik_tarihi DATE,
				durum TEXT NOT NULL DEFAULT 'aktif',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			SQLite: `CREATE TABLE IF NOT EXISTS members (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				ad TEXT NOT NULL,
				soyad TEXT NOT NULL,
				email TEXT UNIQUE,
				telefon TEXT,
				tc_kimlik_no TEXT UNIQUE,
				adres TEXT,
				uyelik_tarihi TEXT,
				durum TEXT NOT NULL DEFAULT 'aktif',
				created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
		{
			Version:     3,
			Description: "Create donations table",
			Postgres: `CREATE TABLE IF NOT EXISTS donations (
				id BIGSERIAL PRIMARY KEY,
				bagisci_adi TEXT NOT NULL,
				email TEXT,
				telefon TEXT,
				tutar NUMERIC(12, 2) NOT NULL CHECK (tutar > 0),
				tur TEXT NOT NULL,
				amac TEXT,
				aciklama TEXT,
				bagis_tarihi DATE NOT NULL DEFAULT CURRENT_DATE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			SQLite: `CREATE TABLE IF NOT EXISTS donations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				bagisci_adi TEXT NOT NULL,
				email TEXT,
				telefon TEXT,
				tutar REAL NOT NULL CHECK (tutar > 0),
				tur TEXT NOT NULL,
				amac TEXT,
				aciklama TEXT,
				bagis_tarihi TEXT NOT NULL DEFAULT CURRENT_DATE,
				created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
		{
			Version:     4,
			Description: "Create social aid applications table",
			Postgres: `CREATE TABLE IF NOT EXISTS social_aid_applications (
				id BIGSERIAL PRIMARY KEY,
				beneficiary_id TEXT NOT NULL,
				yardim_turu TEXT NOT NULL,
				talep_edilen_tutar NUMERIC(12, 2),
				gerekce TEXT,
				durum TEXT NOT NULL DEFAULT 'beklemede',
				basvuru_tarihi TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			SQLite: `CREATE TABLE IF NOT EXISTS social_aid_applications (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				beneficiary_id TEXT NOT NULL,
				yardim_turu TEXT NOT NULL,
				talep_edilen_tutar REAL,
				gerekce TEXT,
				durum TEXT NOT NULL DEFAULT 'beklemede',
				basvuru_tarihi TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
				created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
		{
			Version:     5,
			Description: "Create documents table",
			Postgres: `CREATE TABLE IF NOT EXISTS documents (
				id BIGSERIAL PRIMARY KEY,
				beneficiary_id TEXT NOT NULL,
				document_type TEXT NOT NULL,
				file_name TEXT,
				object_key TEXT NOT NULL UNIQUE,
				content_type TEXT,
				size_bytes BIGINT NOT NULL,
				checksum TEXT NOT NULL,
				uploaded_by TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_documents_beneficiary_id ON documents(beneficiary_id)`,
			SQLite: `CREATE TABLE IF NOT EXISTS documents (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				beneficiary_id TEXT NOT NULL,
				document_type TEXT NOT NULL,
				file_name TEXT,
				object_key TEXT NOT NULL UNIQUE,
				content_type TEXT,
				size_bytes INTEGER NOT NULL,
				checksum TEXT NOT NULL,
				uploaded_by TEXT,
				created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_documents_beneficiary_id ON documents(beneficiary_id)`,
		},
	}
}

// RunMigrations applies every migration not yet recorded in schema_migrations
func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var versions []int
	if err := db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations ORDER BY version"); err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}

		stmt := m.Postgres
		if db.DriverName() == "sqlite3" {
			stmt = m.SQLite
		}

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_migrations (version, description) VALUES (?, ?)"), m.Version, m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
