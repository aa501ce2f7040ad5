package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'profile_role') THEN
			CREATE TYPE profile_role AS ENUM ('admin', 'technician', 'client');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'work_order_type') THEN
			CREATE TYPE work_order_type AS ENUM ('preventive_maintenance', 'piping', 'installation', 'measurement', 'immediate_service');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'work_order_status') THEN
			CREATE TYPE work_order_status AS ENUM ('pending', 'assigned', 'in_progress', 'done', 'archived', 'cancelled');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'work_order_priority') THEN
			CREATE TYPE work_order_priority AS ENUM ('low', 'normal', 'high', 'urgent');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'session_status') THEN
			CREATE TYPE session_status AS ENUM ('active', 'paused', 'completed');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'document_type') THEN
			CREATE TYPE document_type AS ENUM ('quote', 'purchase_order', 'invoice');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'document_status') THEN
			CREATE TYPE document_status AS ENUM ('draft', 'pending_signature', 'signed', 'rejected');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'machine_status') THEN
			CREATE TYPE machine_status AS ENUM ('operational', 'maintenance', 'out_of_service');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role profile_role NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_role ON profiles (role);`,
	`CREATE TABLE IF NOT EXISTS parts_catalog (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		cost NUMERIC(18,2) NOT NULL CHECK (cost >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS machines (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		model TEXT NOT NULL,
		serial_number TEXT NOT NULL,
		manufacturer TEXT NOT NULL,
		year INT NOT NULL,
		client_id TEXT NOT NULL REFERENCES profiles(id),
		status machine_status NOT NULL DEFAULT 'operational',
		location TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_machines_client_id ON machines (client_id);`,
	`CREATE SEQUENCE IF NOT EXISTS work_order_number_seq;`,
	`CREATE TABLE IF NOT EXISTS work_orders (
		id VARCHAR(32) PRIMARY KEY,
		seq BIGINT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		type work_order_type NOT NULL,
		status work_order_status NOT NULL DEFAULT 'pending',
		priority work_order_priority NOT NULL DEFAULT 'normal',
		estimated_date TIMESTAMPTZ,
		estimated_duration_hours NUMERIC(8,2) CHECK (estimated_duration_hours > 0),
		client_id TEXT NOT NULL REFERENCES profiles(id),
		machine_id TEXT,
		public_key VARCHAR(64) NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_work_orders_public_key ON work_orders (public_key);`,
	`CREATE INDEX IF NOT EXISTS idx_work_orders_seq ON work_orders (seq);`,
	`CREATE INDEX IF NOT EXISTS idx_work_orders_client_id ON work_orders (client_id);`,
	`CREATE INDEX IF NOT EXISTS idx_work_orders_status ON work_orders (status);`,
	`CREATE TABLE IF NOT EXISTS work_order_technicians (
		work_order_id VARCHAR(32) NOT NULL REFERENCES work_orders(id) ON DELETE CASCADE,
		technician_id TEXT NOT NULL REFERENCES profiles(id),
		position INT NOT NULL,
		PRIMARY KEY (work_order_id, technician_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_work_order_technicians_technician ON work_order_technicians (technician_id);`,
	`CREATE TABLE IF NOT EXISTS work_sessions (
		id UUID PRIMARY KEY,
		work_order_id VARCHAR(32) NOT NULL REFERENCES work_orders(id) ON DELETE CASCADE,
		technician_id TEXT NOT NULL REFERENCES profiles(id),
		status session_status NOT NULL DEFAULT 'active',
		started_at TIMESTAMPTZ NOT NULL,
		paused_at JSONB NOT NULL DEFAULT '[]',
		finished_at TIMESTAMPTZ,
		notes TEXT NOT NULL DEFAULT '',
		photos JSONB NOT NULL DEFAULT '[]',
		parts_used JSONB NOT NULL DEFAULT '[]',
		geofence_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_work_sessions_technician ON work_sessions (technician_id, status);`,
	`CREATE INDEX IF NOT EXISTS idx_work_sessions_work_order ON work_sessions (work_order_id);`,
	`CREATE SEQUENCE IF NOT EXISTS quote_number_seq;`,
	`CREATE SEQUENCE IF NOT EXISTS purchase_order_number_seq;`,
	`CREATE SEQUENCE IF NOT EXISTS invoice_number_seq;`,
	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		work_order_id VARCHAR(32) NOT NULL REFERENCES work_orders(id) ON DELETE CASCADE,
		type document_type NOT NULL,
		number VARCHAR(32) NOT NULL,
		status document_status NOT NULL DEFAULT 'draft',
		items JSONB NOT NULL DEFAULT '[]',
		subtotal NUMERIC(18,2) NOT NULL,
		tax_rate NUMERIC(6,4) NOT NULL,
		tax_amount NUMERIC(18,2) NOT NULL,
		total NUMERIC(18,2) NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		valid_until TIMESTAMPTZ,
		client_signature TEXT,
		signed_by TEXT,
		signed_at TIMESTAMPTZ,
		rejection_reason TEXT,
		source_document_id UUID REFERENCES documents(id),
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_documents_number ON documents (number);`,
	`CREATE INDEX IF NOT EXISTS idx_documents_work_order ON documents (work_order_id);`,
	`CREATE INDEX IF NOT EXISTS idx_documents_type ON documents (type);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
