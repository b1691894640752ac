package storage

// postgresSchema is applied statement by statement by PostgresAdapter.Migrate.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		sort_order  INTEGER NOT NULL DEFAULT 0,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id               TEXT PRIMARY KEY,
		category_id      TEXT NOT NULL REFERENCES categories(id),
		name             TEXT NOT NULL,
		sku              TEXT UNIQUE,
		unit             TEXT NOT NULL,
		current_quantity NUMERIC(14,3) NOT NULL DEFAULT 0 CHECK (current_quantity >= 0),
		minimum_stock    NUMERIC(14,3) NOT NULL DEFAULT 0,
		cost_price       NUMERIC(14,4),
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		version          BIGINT NOT NULL DEFAULT 1,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS stock_history (
		seq               BIGSERIAL UNIQUE,
		id                TEXT PRIMARY KEY,
		product_id        TEXT NOT NULL REFERENCES products(id),
		transaction_type  TEXT NOT NULL CHECK (transaction_type IN ('IN','OUT','ADJUSTMENT','WASTE','TRANSFER')),
		quantity_change   NUMERIC(14,3) NOT NULL,
		previous_quantity NUMERIC(14,3) NOT NULL,
		new_quantity      NUMERIC(14,3) NOT NULL CHECK (new_quantity >= 0),
		unit_cost         NUMERIC(14,4),
		total_cost        NUMERIC(21,7),
		reference_number  TEXT,
		notes             TEXT,
		performed_by      TEXT,
		transaction_date  TIMESTAMPTZ NOT NULL,
		metadata          JSONB,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (previous_quantity + quantity_change = new_quantity)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_history_product ON stock_history (product_id, transaction_date DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_history_date ON stock_history (transaction_date DESC)`,
	// total_cost carries unit cost scale plus quantity scale
	`ALTER TABLE stock_history ALTER COLUMN total_cost TYPE NUMERIC(21,7)`,
}

// mysqlSchema needs MySQL 8.0.16 or later for CHECK constraints to be enforced.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id          VARCHAR(36) PRIMARY KEY,
		name        VARCHAR(255) NOT NULL UNIQUE,
		description TEXT NOT NULL,
		sort_order  INT NOT NULL DEFAULT 0,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  DATETIME(6) NOT NULL,
		updated_at  DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id               VARCHAR(36) PRIMARY KEY,
		category_id      VARCHAR(36) NOT NULL,
		name             VARCHAR(255) NOT NULL,
		sku              VARCHAR(64) UNIQUE,
		unit             VARCHAR(32) NOT NULL,
		current_quantity DECIMAL(14,3) NOT NULL DEFAULT 0,
		minimum_stock    DECIMAL(14,3) NOT NULL DEFAULT 0,
		cost_price       DECIMAL(14,4),
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		version          BIGINT NOT NULL DEFAULT 1,
		created_at       DATETIME(6) NOT NULL,
		updated_at       DATETIME(6) NOT NULL,
		CONSTRAINT chk_products_quantity CHECK (current_quantity >= 0),
		FOREIGN KEY (category_id) REFERENCES categories(id)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_history (
		seq               BIGINT NOT NULL AUTO_INCREMENT UNIQUE,
		id                VARCHAR(36) PRIMARY KEY,
		product_id        VARCHAR(36) NOT NULL,
		transaction_type  VARCHAR(16) NOT NULL,
		quantity_change   DECIMAL(14,3) NOT NULL,
		previous_quantity DECIMAL(14,3) NOT NULL,
		new_quantity      DECIMAL(14,3) NOT NULL,
		unit_cost         DECIMAL(14,4),
		total_cost        DECIMAL(21,7),
		reference_number  VARCHAR(255),
		notes             TEXT,
		performed_by      VARCHAR(255),
		transaction_date  DATETIME(6) NOT NULL,
		metadata          JSON,
		created_at        DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		CONSTRAINT chk_history_quantity CHECK (new_quantity >= 0),
		INDEX idx_stock_history_product (product_id, transaction_date),
		INDEX idx_stock_history_date (transaction_date),
		FOREIGN KEY (product_id) REFERENCES products(id)
	)`,
	`ALTER TABLE stock_history MODIFY total_cost DECIMAL(21,7)`,
}
