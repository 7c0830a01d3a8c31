package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

func (s *Store) ListTags(ctx context.Context, tenantID string) ([]gradebook.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []gradebook.Tag{}
	for _, t := range s.committed.tags {
		if t.TenantID == tenantID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b gradebook.Tag) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}

// CreateTag, UpdateTag and DeleteTag run in their own transaction so they
// never interleave with an upload.

func (s *Store) CreateTag(ctx context.Context, t *gradebook.Tag) error {
	t.ID = uuid.Nil
	return s.update(ctx, func(d *data) error { return d.saveTag(t) })
}

func (s *Store) UpdateTag(ctx context.Context, t *gradebook.Tag) error {
	if t.ID == uuid.Nil {
		return gradebook.ErrNotFound
	}
	return s.update(ctx, func(d *data) error { return d.saveTag(t) })
}

func (s *Store) DeleteTag(ctx context.Context, tenantID string, id uuid.UUID) error {
	return s.update(ctx, func(d *data) error {
		t, ok := d.tags[id]
		if !ok || t.TenantID != tenantID {
			return gradebook.ErrNotFound
		}
		delete(d.tags, id)
		for aid, a := range d.assignments {
			if i := slices.Index(a.TagIDs, id); i >= 0 {
				a.TagIDs = slices.Delete(a.TagIDs, i, i+1)
				d.assignments[aid] = a
			}
		}
		return nil
	})
}

// update runs fn against a transaction and commits when it succeeds.
func (s *Store) update(ctx context.Context, fn func(d *data) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	mtx := tx.(*Tx)
	defer mtx.Rollback(ctx)

	if err := fn(mtx.d); err != nil {
		return err
	}
	return mtx.Commit(ctx)
}
