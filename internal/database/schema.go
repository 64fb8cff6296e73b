package database

import (
	"context"
	"database/sql"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/model"
)

// ddl holds the idempotent table definitions.  The service owns its
// schema: there is no external migration step, tables are ensured at
// startup before the first request is served.  Site ownership is a
// name label (VARCHAR) rather than a foreign key because historical
// rows must survive site deletion (documented retention policy).
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS project_sites (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        name VARCHAR(100) NOT NULL UNIQUE,
        description TEXT,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS access_codes (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        kind VARCHAR(20) NOT NULL,
        project_site VARCHAR(100) NULL,
        code_hash VARCHAR(200) NOT NULL,
        display_code VARCHAR(100) NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        KEY idx_access_codes_kind_site (kind, project_site)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS items (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        name VARCHAR(200) NOT NULL,
        category VARCHAR(50) NOT NULL,
        unit VARCHAR(50) NOT NULL DEFAULT '',
        qty DECIMAL(12,2) NOT NULL DEFAULT 0,
        unit_cost DECIMAL(12,2) NOT NULL DEFAULT 0,
        budget VARCHAR(200) NOT NULL DEFAULT '',
        section VARCHAR(200) NOT NULL DEFAULT '',
        grp VARCHAR(100) NOT NULL DEFAULT '',
        building_type VARCHAR(50) NOT NULL DEFAULT '',
        project_site VARCHAR(100) NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        KEY idx_items_site (project_site),
        KEY idx_items_section (section)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS requests (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        item_id BIGINT UNSIGNED NOT NULL,
        qty DECIMAL(12,2) NOT NULL,
        requested_by VARCHAR(100) NOT NULL,
        note TEXT NOT NULL,
        section VARCHAR(50) NOT NULL,
        building_type VARCHAR(50) NOT NULL DEFAULT '',
        budget VARCHAR(200) NOT NULL DEFAULT '',
        current_price DECIMAL(12,2) NOT NULL DEFAULT 0,
        project_site VARCHAR(100) NULL,
        status VARCHAR(20) NOT NULL DEFAULT 'Pending',
        approved_by VARCHAR(100) NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        KEY idx_requests_site (project_site),
        KEY idx_requests_status (status),
        CONSTRAINT fk_requests_item FOREIGN KEY (item_id) REFERENCES items (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS actuals (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        item_id BIGINT UNSIGNED NOT NULL,
        actual_qty DECIMAL(12,2) NOT NULL,
        actual_cost DECIMAL(12,2) NOT NULL,
        actual_date VARCHAR(20) NOT NULL DEFAULT '',
        recorded_by VARCHAR(100) NOT NULL DEFAULT '',
        notes VARCHAR(200) NOT NULL DEFAULT '',
        project_site VARCHAR(100) NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        KEY idx_actuals_item (item_id),
        KEY idx_actuals_notes (notes)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS notifications (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        kind VARCHAR(50) NOT NULL,
        title VARCHAR(200) NOT NULL,
        message TEXT NOT NULL,
        target_id BIGINT UNSIGNED NULL,
        request_id BIGINT UNSIGNED NULL,
        is_read TINYINT(1) NOT NULL DEFAULT 0,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        KEY idx_notifications_target (target_id),
        KEY idx_notifications_request (request_id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS access_logs (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        user_name VARCHAR(100) NOT NULL DEFAULT '',
        role VARCHAR(50) NOT NULL DEFAULT '',
        code_prefix VARCHAR(50) NOT NULL DEFAULT '',
        status VARCHAR(20) NOT NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        KEY idx_access_logs_created (created_at)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS building_type_configs (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        building_type VARCHAR(50) NOT NULL,
        blocks INT NOT NULL DEFAULT 0,
        units_per_block INT NOT NULL DEFAULT 0,
        notes TEXT,
        project_site VARCHAR(100) NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        KEY idx_building_configs_site (project_site, building_type)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates every table the service needs if it does not
// exist yet.  Safe to run on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SeedGlobalAdmin inserts the default global administrator credential
// when none exists.  This is the only credential created
// automatically; project sites and their codes are provisioned
// through the admin settings endpoints.
func SeedGlobalAdmin(ctx context.Context, db *sql.DB, code string, bcryptCost int) error {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM access_codes WHERE kind = ? AND project_site IS NULL`,
		model.CredentialGlobalAdmin).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	hash, err := auth.HashCode(code, bcryptCost)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO access_codes (kind, project_site, code_hash, display_code) VALUES (?, NULL, ?, ?)`,
		model.CredentialGlobalAdmin, hash, code)
	return err
}
