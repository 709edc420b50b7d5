package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		is_staff      BOOLEAN NOT NULL DEFAULT FALSE,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		KEY idx_refresh_tokens_user (user_id),
		CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS books (
		id        BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		title     VARCHAR(255) NOT NULL,
		author    VARCHAR(255) NOT NULL,
		cover     ENUM('SOFT','HARD') NOT NULL,
		inventory INT NOT NULL DEFAULT 0,
		daily_fee DECIMAL(8,2) NOT NULL DEFAULT 0.00,
		CONSTRAINT chk_books_inventory CHECK (inventory >= 0),
		CONSTRAINT chk_books_daily_fee CHECK (daily_fee >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS borrowings (
		id                   BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		borrow_date          DATE NOT NULL,
		expected_return_date DATE NOT NULL,
		actual_return_date   DATE NULL,
		book_id              BIGINT UNSIGNED NOT NULL,
		user_id              BIGINT UNSIGNED NOT NULL,
		KEY idx_borrowings_user_active (user_id, actual_return_date),
		KEY idx_borrowings_book (book_id),
		CONSTRAINT fk_borrowings_book FOREIGN KEY (book_id) REFERENCES books (id) ON DELETE CASCADE,
		CONSTRAINT fk_borrowings_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT chk_borrowings_expected CHECK (expected_return_date >= borrow_date),
		CONSTRAINT chk_borrowings_actual CHECK (actual_return_date IS NULL OR actual_return_date >= borrow_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
