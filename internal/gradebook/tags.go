package gradebook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DefaultTagColor is used when a tag is created without a color.
const DefaultTagColor = "#6b7280"

// TagInput is the user-supplied part of a tag.
type TagInput struct {
	Name        string `json:"name" validate:"required,max=64"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
	Description string `json:"description" validate:"max=500"`
}

// FieldError reports input fields that failed validation, keyed by JSON
// field name. It unwraps to ErrInvalidInput.
type FieldError struct {
	Fields map[string]string
}

func (e *FieldError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return fmt.Sprintf("%v: %s", ErrInvalidInput, strings.Join(parts, ", "))
}

func (e *FieldError) Unwrap() error { return ErrInvalidInput }

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs struct-tag validation and converts failures to a
// *FieldError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fe := &FieldError{Fields: make(map[string]string, len(ve))}
	for _, f := range ve {
		fe.Fields[jsonFieldName(f.Field())] = f.Tag()
	}
	return fe
}

func jsonFieldName(field string) string {
	switch field {
	case "Name":
		return "name"
	case "Color":
		return "color"
	case "Description":
		return "description"
	}
	return strings.ToLower(field)
}

// normalize trims the input and fills in the default color.
func (in TagInput) normalize() TagInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	in.Description = strings.TrimSpace(in.Description)
	if in.Color == "" {
		in.Color = DefaultTagColor
	}
	return in
}

// TagService manages tags outside of uploads.
type TagService struct {
	store TagStore
}

// NewTagService creates a TagService.
func NewTagService(store TagStore) *TagService {
	return &TagService{store: store}
}

// List returns the tenant's tags ordered by name.
func (s *TagService) List(ctx context.Context, tenantID string) ([]Tag, error) {
	return s.store.ListTags(ctx, tenantID)
}

// Create validates and stores a new tag. A name already used by another
// tag of the tenant (ignoring case) yields ErrConflict.
func (s *TagService) Create(ctx context.Context, tenantID string, in TagInput) (*Tag, error) {
	in = in.normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	t := &Tag{TenantID: tenantID, Name: in.Name, Color: in.Color, Description: in.Description}
	if err := s.store.CreateTag(ctx, t); err != nil {
		return nil, fmt.Errorf("create tag %q: %w", in.Name, err)
	}
	return t, nil
}

// Update replaces the name, color and description of an existing tag.
func (s *TagService) Update(ctx context.Context, tenantID string, id uuid.UUID, in TagInput) (*Tag, error) {
	in = in.normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	t := &Tag{ID: id, TenantID: tenantID, Name: in.Name, Color: in.Color, Description: in.Description}
	if err := s.store.UpdateTag(ctx, t); err != nil {
		return nil, fmt.Errorf("update tag %s: %w", id, err)
	}
	return t, nil
}

// Delete removes a tag and detaches it from every assignment.
func (s *TagService) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	if err := s.store.DeleteTag(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete tag %s: %w", id, err)
	}
	return nil
}

// resolveTagNames returns the IDs of the named tags, creating the ones
// that do not exist yet. Names match existing tags case-insensitively.
func resolveTagNames(ctx context.Context, tx Tx, tenantID string, names []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, name := range names {
		in := TagInput{Name: name}.normalize()
		if in.Name == "" {
			continue
		}
		if err := validateStruct(in); err != nil {
			return nil, err
		}

		t, err := tx.FindTagByName(ctx, tenantID, in.Name)
		switch {
		case errors.Is(err, ErrNotFound):
			t = &Tag{TenantID: tenantID, Name: in.Name, Color: in.Color}
			if err := tx.SaveTag(ctx, t); err != nil {
				return nil, fmt.Errorf("create tag %q: %w", in.Name, err)
			}
		case err != nil:
			return nil, fmt.Errorf("find tag %q: %w", in.Name, err)
		}
		ids = append(ids, t.ID)
	}
	return ids, nil
}
