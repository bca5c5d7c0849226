package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/slatehq/slate-server/internal/domain"
)

// Collections were called slates in the v1 API. The legacy route keeps the
// old request shape and runs the same update path as v2.
func (s *Server) registerSlateRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "updateSlate",
		Method:      http.MethodPatch,
		Path:        "/api/v1/slates/{id}",
		Summary:     "Update slate (legacy)",
		Description: "v1 shape of updateCollection; privacy is sent as data.public",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"owner": {}}},
		Deprecated:  true,
	}, s.handleUpdateSlate)
}

// SlateFields is the v1 update payload.
type SlateFields struct {
	Public *bool   `json:"public,omitempty" doc:"New privacy"`
	Name   *string `json:"name,omitempty" doc:"New display name"`
	Body   *string `json:"body,omitempty" doc:"New description"`
}

// UpdateSlateRequest nests the fields under "data" as v1 clients send them.
type UpdateSlateRequest struct {
	Data SlateFields `json:"data"`
}

// UpdateSlateInput contains parameters for the legacy update.
type UpdateSlateInput struct {
	ID   string `path:"id" doc:"Slate (collection) ID"`
	Body UpdateSlateRequest
}

func (s *Server) handleUpdateSlate(ctx context.Context, input *UpdateSlateInput) (*CollectionOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	patch := domain.CollectionPatch{
		IsPublic: input.Body.Data.Public,
		Name:     input.Body.Data.Name,
		Body:     input.Body.Data.Body,
	}

	coll, err := s.services.Collection.UpdateCollection(ctx, ownerID, input.ID, patch)
	if err != nil {
		return nil, err
	}

	return &CollectionOutput{Body: toCollectionResponse(coll)}, nil
}
