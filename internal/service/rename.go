package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slatehq/slate-server/internal/domain"
	domainerrors "github.com/slatehq/slate-server/internal/errors"
	"github.com/slatehq/slate-server/internal/store"
	"github.com/slatehq/slate-server/internal/util"
	"github.com/slatehq/slate-server/internal/validation"
)

// SlugLookup finds an owner's collection by slug.
type SlugLookup interface {
	GetCollectionBySlug(ctx context.Context, ownerID, slug string) (*domain.Collection, error)
}

var nameRule = fmt.Sprintf("required,max=%d", domain.MaxCollectionNameLength)

// RenameResolver validates proposed collection names and derives their slugs.
// It never writes.
type RenameResolver struct {
	lookup    SlugLookup
	validator *validation.Validator
}

// NewRenameResolver creates a resolver checking uniqueness against lookup.
func NewRenameResolver(lookup SlugLookup, v *validation.Validator) *RenameResolver {
	return &RenameResolver{lookup: lookup, validator: v}
}

// NormalizeName trims surrounding whitespace. Names are compared and stored
// in this form.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// Resolve returns the slug for name, or INVALID_NAME when the name is empty,
// longer than 48 characters or has no letters or digits, or NAME_TAKEN when
// another collection of ownerID already holds the slug. current, which may be
// nil for a new collection, is excluded from the uniqueness check.
func (r *RenameResolver) Resolve(ctx context.Context, ownerID, name string, current *domain.Collection) (string, error) {
	name = NormalizeName(name)

	if err := r.validator.Var("name", name, nameRule); err != nil {
		return "", domainerrors.InvalidName(validation.Message(err)).WithCause(err)
	}

	slug := util.Slugify(name)
	if slug == "" {
		return "", domainerrors.InvalidName("name must contain a letter or digit")
	}

	existing, err := r.lookup.GetCollectionBySlug(ctx, ownerID, slug)
	if errors.Is(err, store.ErrCollectionNotFound) {
		return slug, nil
	}
	if err != nil {
		return "", fmt.Errorf("look up slug %q: %w", slug, err)
	}

	if current != nil && existing.ID == current.ID {
		return slug, nil
	}
	return "", domainerrors.NameTaken(slug)
}
