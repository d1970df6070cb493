package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"centerequity/portal/internal/models"
)

type VisitRepository struct {
	pool *pgxpool.Pool
}

func NewVisitRepository(pool *pgxpool.Pool) *VisitRepository {
	return &VisitRepository{pool: pool}
}

func (r *VisitRepository) Create(ctx context.Context, entry models.VisitEntry) error {
	const query = `
		INSERT INTO visit_entries (id, reason, author_id, author_name, visited_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.Reason,
		entry.AuthorID,
		entry.AuthorName,
		entry.At,
	)
	return err
}

func (r *VisitRepository) ListAll(ctx context.Context) ([]models.VisitEntry, error) {
	const query = `
		SELECT id, reason, author_id, author_name, visited_at
		FROM visit_entries ORDER BY visited_at, id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.VisitEntry
	for rows.Next() {
		var entry models.VisitEntry
		if err := rows.Scan(&entry.ID, &entry.Reason, &entry.AuthorID, &entry.AuthorName, &entry.At); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *VisitRepository) ListByAuthor(ctx context.Context, authorID string) ([]models.VisitEntry, error) {
	const query = `
		SELECT id, reason, author_id, author_name, visited_at
		FROM visit_entries WHERE author_id = $1 ORDER BY visited_at, id
	`
	rows, err := r.pool.Query(ctx, query, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.VisitEntry
	for rows.Next() {
		var entry models.VisitEntry
		if err := rows.Scan(&entry.ID, &entry.Reason, &entry.AuthorID, &entry.AuthorName, &entry.At); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *VisitRepository) DeleteAll(ctx context.Context) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM visit_entries`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
