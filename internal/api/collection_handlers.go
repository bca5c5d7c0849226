package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/slatehq/slate-server/internal/domain"
)

func (s *Server) registerCollectionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "updateCollection",
		Method:      http.MethodPatch,
		Path:        "/api/v2/collections/{id}",
		Summary:     "Update collection",
		Description: "Changes a collection's privacy, name or body and propagates visibility to the search index",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"owner": {}}},
	}, s.handleUpdateCollection)
}

// === DTOs ===

// CollectionResponse is the API representation of a collection.
type CollectionResponse struct {
	ID        string    `json:"id" doc:"Collection ID"`
	OwnerID   string    `json:"owner_id" doc:"Owning user"`
	Name      string    `json:"name" doc:"Display name"`
	Slug      string    `json:"slug" doc:"URL slug, unique per owner"`
	Body      string    `json:"body" doc:"Description (may contain HTML)"`
	IsPublic  bool      `json:"is_public" doc:"Whether members are publicly visible through this collection"`
	FileIDs   []string  `json:"file_ids" doc:"Member file IDs"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last update time"`
}

// CollectionOutput wraps a collection for Huma.
type CollectionOutput struct {
	Body CollectionResponse
}

// UpdateCollectionRequest is a partial update. Omitted fields are unchanged.
type UpdateCollectionRequest struct {
	IsPublic *bool   `json:"is_public,omitempty" doc:"New privacy"`
	Name     *string `json:"name,omitempty" doc:"New display name"`
	Body     *string `json:"body,omitempty" doc:"New description"`
}

// UpdateCollectionInput contains parameters for updating a collection.
type UpdateCollectionInput struct {
	ID   string `path:"id" doc:"Collection ID"`
	Body UpdateCollectionRequest
}

// === Handlers ===

func (s *Server) handleUpdateCollection(ctx context.Context, input *UpdateCollectionInput) (*CollectionOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	patch := domain.CollectionPatch{
		IsPublic: input.Body.IsPublic,
		Name:     input.Body.Name,
		Body:     input.Body.Body,
	}

	coll, err := s.services.Collection.UpdateCollection(ctx, ownerID, input.ID, patch)
	if err != nil {
		return nil, err
	}

	return &CollectionOutput{Body: toCollectionResponse(coll)}, nil
}

func toCollectionResponse(c *domain.Collection) CollectionResponse {
	fileIDs := c.FileIDs
	if fileIDs == nil {
		fileIDs = []string{}
	}
	return CollectionResponse{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		Name:      c.Name,
		Slug:      c.Slug,
		Body:      c.Body,
		IsPublic:  c.IsPublic,
		FileIDs:   fileIDs,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
