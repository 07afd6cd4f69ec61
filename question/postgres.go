package question

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL 驱动
)

// OpenPostgres opens and pings a lib/pq connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS questions (
            id VARCHAR(64) PRIMARY KEY,
            category VARCHAR(100) NOT NULL DEFAULT '',
            prompt TEXT NOT NULL,
            choices JSONB NOT NULL,
            answer TEXT NOT NULL
        )
    `)
	return err
}

// LoadPostgres builds a catalog from the questions table.
func LoadPostgres(ctx context.Context, db *sql.DB) (*Catalog, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, category, prompt, choices, answer FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var items []Question
	for rows.Next() {
		var (
			q       Question
			choices []byte
		)
		if err := rows.Scan(&q.ID, &q.Category, &q.Prompt, &choices, &q.Answer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(choices, &q.Choices); err != nil {
			return nil, fmt.Errorf("question %s: bad choices: %w", q.ID, err)
		}
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewCatalog(items, 0)
}
