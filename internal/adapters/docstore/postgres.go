package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-challenge-backend/internal/domain"
	"tg-challenge-backend/internal/infra/metrics"
)

// Postgres реализует domain.DocStore на одной JSONB-таблице. Каждая
// операция — один SQL-стейтмент, поэтому атомарность на вызов
// сохраняется без явных транзакций.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.DocStore = (*Postgres)(nil)

// NewPostgres создаёт адаптер и при необходимости таблицу документов.
func NewPostgres(pool *pgxpool.Pool) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS documents (
    collection  text   NOT NULL,
    id          text   NOT NULL,
    doc         jsonb  NOT NULL DEFAULT '{}'::jsonb,
    inserted_at bigint GENERATED ALWAYS AS IDENTITY,
    PRIMARY KEY (collection, id)
)
`)
	if err != nil {
		return nil, fmt.Errorf("создание таблицы документов: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Get читает документ в out.
func (s *Postgres) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveStoreOp("postgres", "get", collection, start, nil)
		return false, nil
	}
	metrics.ObserveStoreOp("postgres", "get", collection, start, err)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, out)
}

// Set пишет документ. merge=true объединяет поля через оператор ||.
func (s *Postgres) Set(ctx context.Context, collection, id string, doc any, merge bool) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	query := `
INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc`
	if merge {
		query = `
INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
ON CONFLICT (collection, id) DO UPDATE SET doc = documents.doc || EXCLUDED.doc`
	}
	start := time.Now()
	_, err = s.pool.Exec(ctx, query, collection, id, raw)
	metrics.ObserveStoreOp("postgres", "set", collection, start, err)
	return err
}

// Increment атомарно сдвигает числовое поле документа.
func (s *Postgres) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := s.pool.Exec(ctx, `
INSERT INTO documents (collection, id, doc)
VALUES ($1, $2, jsonb_build_object($3::text, $4::bigint))
ON CONFLICT (collection, id) DO UPDATE
SET doc = jsonb_set(
    documents.doc,
    ARRAY[$3::text],
    to_jsonb(COALESCE((documents.doc ->> $3::text)::bigint, 0) + $4::bigint)
)`, collection, id, field, delta)
	metrics.ObserveStoreOp("postgres", "increment", collection, start, err)
	return err
}

// Append атомарно дописывает элемент в массив документа.
func (s *Postgres) Append(ctx context.Context, collection, id, field string, element any) error {
	raw, err := json.Marshal(element)
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err = s.pool.Exec(ctx, `
INSERT INTO documents (collection, id, doc)
VALUES ($1, $2, jsonb_build_object($3::text, jsonb_build_array($4::jsonb)))
ON CONFLICT (collection, id) DO UPDATE
SET doc = jsonb_set(
    documents.doc,
    ARRAY[$3::text],
    COALESCE(documents.doc -> $3::text, '[]'::jsonb) || jsonb_build_array($4::jsonb)
)`, collection, id, field, raw)
	metrics.ObserveStoreOp("postgres", "append", collection, start, err)
	return err
}

// List возвращает документы в порядке вставки, опционально по
// равенству полей (jsonb containment).
func (s *Postgres) List(ctx context.Context, collection string, filter map[string]any, out any) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	query := `SELECT id, doc FROM documents WHERE collection = $1 ORDER BY inserted_at`
	args := []any{collection}
	if len(filter) > 0 {
		rawFilter, err := json.Marshal(filter)
		if err != nil {
			return err
		}
		query = `SELECT id, doc FROM documents WHERE collection = $1 AND doc @> $2 ORDER BY inserted_at`
		args = append(args, rawFilter)
	}
	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.ObserveStoreOp("postgres", "list", collection, start, err)
		return err
	}
	defer rows.Close()
	var result []map[string]any
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			metrics.ObserveStoreOp("postgres", "list", collection, start, err)
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		if _, ok := doc["id"]; !ok {
			doc["id"] = id
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		metrics.ObserveStoreOp("postgres", "list", collection, start, err)
		return err
	}
	metrics.ObserveStoreOp("postgres", "list", collection, start, nil)
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
