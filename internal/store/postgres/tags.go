package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

const tagColumns = `id, tenant_id, name, color, description`

func scanTag(row pgx.Row) (*gradebook.Tag, error) {
	var t gradebook.Tag
	if err := row.Scan(&t.ID, &t.TenantID, &t.Name, &t.Color, &t.Description); err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func queryTags(ctx context.Context, db DBTX, sql string, args ...any) ([]gradebook.Tag, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	tags := []gradebook.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *t)
	}
	return tags, rows.Err()
}

func saveTag(ctx context.Context, db DBTX, t *gradebook.Tag) error {
	if t.ID == uuid.Nil {
		id := uuid.New()
		_, err := db.Exec(ctx,
			`INSERT INTO tags (`+tagColumns+`) VALUES ($1, $2, $3, $4, $5)`,
			id, t.TenantID, t.Name, t.Color, t.Description)
		if err != nil {
			return mapError(err)
		}
		t.ID = id
		return nil
	}
	return execOne(ctx, db,
		`UPDATE tags SET name = $3, color = $4, description = $5 WHERE id = $1 AND tenant_id = $2`,
		t.ID, t.TenantID, t.Name, t.Color, t.Description)
}

func (s *Store) ListTags(ctx context.Context, tenantID string) ([]gradebook.Tag, error) {
	return queryTags(ctx, s.pool,
		`SELECT `+tagColumns+` FROM tags WHERE tenant_id = $1 ORDER BY lower(name)`, tenantID)
}

func (s *Store) CreateTag(ctx context.Context, t *gradebook.Tag) error {
	t.ID = uuid.Nil
	return saveTag(ctx, s.pool, t)
}

func (s *Store) UpdateTag(ctx context.Context, t *gradebook.Tag) error {
	if t.ID == uuid.Nil {
		return gradebook.ErrNotFound
	}
	return saveTag(ctx, s.pool, t)
}

// DeleteTag removes a tag; assignment links go with it via ON DELETE CASCADE.
func (s *Store) DeleteTag(ctx context.Context, tenantID string, id uuid.UUID) error {
	return execOne(ctx, s.pool, `DELETE FROM tags WHERE id = $1 AND tenant_id = $2`, id, tenantID)
}
