package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Poltr/internal/core/accounts"
)

type postgresMountainRepo struct {
	db *sql.DB
}

// NewMountainRepository creates a new PostgreSQL mountain template repository
func NewMountainRepository(db *sql.DB) accounts.MountainRepository {
	return &postgresMountainRepo{db: db}
}

// GetRandom draws one pseudonym template uniformly at random. The table
// is small and static, so ORDER BY random() is fine here.
func (r *postgresMountainRepo) GetRandom(ctx context.Context) (*accounts.MountainTemplate, error) {
	query := `
		SELECT id, name, fullname, canton, height
		FROM mountain_templates
		ORDER BY random()
		LIMIT 1
	`

	var tmpl accounts.MountainTemplate
	err := r.db.QueryRowContext(ctx, query).Scan(
		&tmpl.ID, &tmpl.Name, &tmpl.Fullname, &tmpl.Canton, &tmpl.Height,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("mountain template table is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to draw mountain template: %w", err)
	}
	return &tmpl, nil
}
