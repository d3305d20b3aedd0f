package places

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres serves suggestions from a local gazetteer table:
//
//	CREATE TABLE places (id text PRIMARY KEY, name text NOT NULL, locality text, rank int DEFAULT 0);
type Postgres struct {
	db    *sql.DB
	limit int
}

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

func NewPostgres(db *sql.DB, limit int) *Postgres {
	if limit <= 0 {
		limit = 5
	}
	return &Postgres{db: db, limit: limit}
}

func (p *Postgres) Suggest(ctx context.Context, input string) ([]Suggestion, error) {
	q := `
SELECT id, name, COALESCE(locality, '')
FROM places
WHERE name ILIKE $1 || '%' OR locality ILIKE $1 || '%'
ORDER BY rank DESC, name
LIMIT $2`
	rows, err := p.db.QueryContext(ctx, q, likeEscape(input), p.limit)
	if err != nil {
		return nil, fmt.Errorf("query places: %w", err)
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		var s Suggestion
		if err := rows.Scan(&s.ID, &s.Text, &s.Secondary); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error { return p.db.Close() }

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(s)
}
