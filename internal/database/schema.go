package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied statement by statement; the driver runs without
// multiStatements.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id            CHAR(36)     NOT NULL PRIMARY KEY,
    name          VARCHAR(255) NOT NULL,
    email         VARCHAR(255) NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    role          VARCHAR(32)  NOT NULL DEFAULT 'user',
    created_at    DATETIME(6)  NOT NULL,
    updated_at    DATETIME(6)  NOT NULL,
    UNIQUE KEY uq_users_email (email),
    KEY idx_users_role (role)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS qr_codes (
    id            CHAR(36)     NOT NULL PRIMARY KEY,
    qr_value      CHAR(16)     NOT NULL,
    created_by    CHAR(36)     NULL,
    is_active     TINYINT(1)   NOT NULL DEFAULT 1,
    created_at    DATETIME(6)  NOT NULL,
    assigned_at   DATETIME(6)  NULL,
    loc_latitude  DOUBLE       NULL,
    loc_longitude DOUBLE       NULL,
    loc_address   VARCHAR(512) NULL,
    loc_timestamp DATETIME(6)  NULL,
    UNIQUE KEY uq_qr_codes_value (qr_value),
    KEY idx_qr_codes_owner (created_by, is_active),
    KEY idx_qr_codes_created (created_at),
    CONSTRAINT fk_qr_codes_owner FOREIGN KEY (created_by) REFERENCES users (id) ON DELETE SET NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS qr_location_history (
    seq         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
    qr_code_id  CHAR(36)        NOT NULL,
    latitude    DOUBLE          NOT NULL,
    longitude   DOUBLE          NOT NULL,
    address     VARCHAR(512)    NOT NULL DEFAULT '',
    recorded_at DATETIME(6)     NOT NULL,
    KEY idx_history_code (qr_code_id, seq),
    CONSTRAINT fk_history_code FOREIGN KEY (qr_code_id) REFERENCES qr_codes (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
    id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
    user_id    CHAR(36)        NOT NULL,
    token_hash CHAR(64)        NOT NULL,
    expires_at DATETIME        NOT NULL,
    revoked_at DATETIME        NULL,
    created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uq_refresh_tokens_hash (token_hash),
    KEY idx_refresh_tokens_user (user_id),
    CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables when they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
