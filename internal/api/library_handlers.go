package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/slatehq/slate-server/internal/domain"
	"github.com/slatehq/slate-server/internal/store"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createCollection",
		Method:        http.MethodPost,
		Path:          "/api/v1/collections",
		Summary:       "Create collection",
		Description:   "Creates an empty private collection",
		Tags:          []string{"Collections"},
		Security:      []map[string][]string{{"owner": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "listCollections",
		Method:      http.MethodGet,
		Path:        "/api/v1/collections",
		Summary:     "List collections",
		Description: "Returns the caller's collections, paginated by id",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"owner": {}}},
	}, s.handleListCollections)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCollection",
		Method:      http.MethodGet,
		Path:        "/api/v1/collections/{id}",
		Summary:     "Get collection",
		Description: "Returns a collection with its member files",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"owner": {}}},
	}, s.handleGetCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteCollection",
		Method:      http.MethodDelete,
		Path:        "/api/v1/collections/{id}",
		Summary:     "Delete collection",
		Description: "Deletes a collection; files that were public only through it leave the index",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"owner": {}}},
	}, s.handleDeleteCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "addCollectionFile",
		Method:      http.MethodPost,
		Path:        "/api/v1/collections/{id}/files",
		Summary:     "Add file to collection",
		Description: "Adds a file to a collection. Adding a member again is a no-op",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"owner": {}}},
	}, s.handleAddCollectionFile)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeCollectionFile",
		Method:      http.MethodDelete,
		Path:        "/api/v1/collections/{id}/files/{fileID}",
		Summary:     "Remove file from collection",
		Description: "Removes a file from a collection",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"owner": {}}},
	}, s.handleRemoveCollectionFile)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createFile",
		Method:        http.MethodPost,
		Path:          "/api/v1/files",
		Summary:       "Create file",
		Description:   "Registers an uploaded file",
		Tags:          []string{"Files"},
		Security:      []map[string][]string{{"owner": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateFile)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateFile",
		Method:      http.MethodPatch,
		Path:        "/api/v1/files/{id}",
		Summary:     "Update file",
		Description: "Sets a file's own public flag",
		Tags:        []string{"Files"},
		Security:    []map[string][]string{{"owner": {}}},
	}, s.handleUpdateFile)

	huma.Register(s.api, huma.Operation{
		OperationID: "getVisibility",
		Method:      http.MethodGet,
		Path:        "/api/v1/visibility",
		Summary:     "Get visibility",
		Description: "Partitions the caller's files into publicly visible and private",
		Tags:        []string{"Files"},
		Security:    []map[string][]string{{"owner": {}}},
	}, s.handleGetVisibility)
}

// === DTOs ===

// CreateCollectionRequest is the request body for creating a collection.
type CreateCollectionRequest struct {
	Name string `json:"name" doc:"Display name"`
	Body string `json:"body,omitempty" doc:"Description"`
}

// CreateCollectionInput contains parameters for creating a collection.
type CreateCollectionInput struct {
	Body CreateCollectionRequest
}

// ListCollectionsInput contains pagination parameters.
type ListCollectionsInput struct {
	Cursor string `query:"cursor" doc:"Pagination cursor"`
	Limit  int    `query:"limit" doc:"Items per page (default 50)"`
}

// ListCollectionsResponse is one page of collections.
type ListCollectionsResponse struct {
	Collections []CollectionResponse `json:"collections" doc:"Collections on this page"`
	NextCursor  string               `json:"next_cursor,omitempty" doc:"Cursor for the next page"`
	HasMore     bool                 `json:"has_more" doc:"Whether more pages exist"`
	Total       int                  `json:"total" doc:"Total collections"`
}

// ListCollectionsOutput wraps the list response for Huma.
type ListCollectionsOutput struct {
	Body ListCollectionsResponse
}

// CollectionPathInput addresses one collection.
type CollectionPathInput struct {
	ID string `path:"id" doc:"Collection ID"`
}

// FileResponse is the API representation of a file.
type FileResponse struct {
	ID            string    `json:"id" doc:"File ID"`
	OwnerID       string    `json:"owner_id" doc:"Owning user"`
	Filename      string    `json:"filename" doc:"Original filename"`
	CID           string    `json:"cid,omitempty" doc:"Content identifier"`
	IsPublic      bool      `json:"is_public" doc:"The file's own public flag"`
	CollectionIDs []string  `json:"collection_ids" doc:"Collections listing this file"`
	CreatedAt     time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt     time.Time `json:"updated_at" doc:"Last update time"`
}

// FileOutput wraps a file for Huma.
type FileOutput struct {
	Body FileResponse
}

// CollectionDetailResponse is a collection with its member files.
type CollectionDetailResponse struct {
	CollectionResponse
	Files []FileResponse `json:"files" doc:"Member files"`
}

// CollectionDetailOutput wraps the detail response for Huma.
type CollectionDetailOutput struct {
	Body CollectionDetailResponse
}

// MessageResponse is a generic acknowledgement.
type MessageResponse struct {
	Message string `json:"message" doc:"Result message"`
}

// MessageOutput wraps a message for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// AddCollectionFileRequest names the file to add.
type AddCollectionFileRequest struct {
	FileID string `json:"file_id" minLength:"1" doc:"File ID"`
}

// AddCollectionFileInput contains parameters for adding a member.
type AddCollectionFileInput struct {
	ID   string `path:"id" doc:"Collection ID"`
	Body AddCollectionFileRequest
}

// RemoveCollectionFileInput contains parameters for removing a member.
type RemoveCollectionFileInput struct {
	ID     string `path:"id" doc:"Collection ID"`
	FileID string `path:"fileID" doc:"File ID"`
}

// CreateFileRequest is the request body for registering a file.
type CreateFileRequest struct {
	Filename string `json:"filename" minLength:"1" maxLength:"255" doc:"Original filename"`
	CID      string `json:"cid,omitempty" doc:"Content identifier"`
	IsPublic bool   `json:"is_public,omitempty" doc:"Own public flag"`
}

// CreateFileInput contains parameters for creating a file.
type CreateFileInput struct {
	Body CreateFileRequest
}

// UpdateFileRequest sets the file's own flag.
type UpdateFileRequest struct {
	IsPublic bool `json:"is_public" doc:"Own public flag"`
}

// UpdateFileInput contains parameters for updating a file.
type UpdateFileInput struct {
	ID   string `path:"id" doc:"File ID"`
	Body UpdateFileRequest
}

// VisibilityResponse partitions the caller's files.
type VisibilityResponse struct {
	Public  []string `json:"public" doc:"Publicly visible file IDs"`
	Private []string `json:"private" doc:"Private file IDs"`
}

// VisibilityOutput wraps the visibility response for Huma.
type VisibilityOutput struct {
	Body VisibilityResponse
}

// === Handlers ===

func (s *Server) handleCreateCollection(ctx context.Context, input *CreateCollectionInput) (*CollectionOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	coll, err := s.services.Library.CreateCollection(ctx, ownerID, input.Body.Name, input.Body.Body)
	if err != nil {
		return nil, err
	}
	return &CollectionOutput{Body: toCollectionResponse(coll)}, nil
}

func (s *Server) handleListCollections(ctx context.Context, input *ListCollectionsInput) (*ListCollectionsOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	page, err := s.services.Library.ListCollections(ctx, ownerID, store.PaginationParams{
		Limit:  input.Limit,
		Cursor: input.Cursor,
	})
	if err != nil {
		return nil, err
	}

	colls := make([]CollectionResponse, len(page.Items))
	for i, c := range page.Items {
		colls[i] = toCollectionResponse(c)
	}
	return &ListCollectionsOutput{Body: ListCollectionsResponse{
		Collections: colls,
		NextCursor:  page.NextCursor,
		HasMore:     page.HasMore,
		Total:       page.Total,
	}}, nil
}

func (s *Server) handleGetCollection(ctx context.Context, input *CollectionPathInput) (*CollectionDetailOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	coll, files, err := s.services.Library.GetCollection(ctx, ownerID, input.ID)
	if err != nil {
		return nil, err
	}

	resp := CollectionDetailResponse{
		CollectionResponse: toCollectionResponse(coll),
		Files:              make([]FileResponse, len(files)),
	}
	for i, f := range files {
		resp.Files[i] = toFileResponse(f)
	}
	return &CollectionDetailOutput{Body: resp}, nil
}

func (s *Server) handleDeleteCollection(ctx context.Context, input *CollectionPathInput) (*MessageOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Library.DeleteCollection(ctx, ownerID, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Collection deleted"}}, nil
}

func (s *Server) handleAddCollectionFile(ctx context.Context, input *AddCollectionFileInput) (*MessageOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Library.AddFile(ctx, ownerID, input.ID, input.Body.FileID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "File added"}}, nil
}

func (s *Server) handleRemoveCollectionFile(ctx context.Context, input *RemoveCollectionFileInput) (*MessageOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Library.RemoveFile(ctx, ownerID, input.ID, input.FileID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "File removed"}}, nil
}

func (s *Server) handleCreateFile(ctx context.Context, input *CreateFileInput) (*FileOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	f, err := s.services.Library.CreateFile(ctx, ownerID, input.Body.Filename, input.Body.CID, input.Body.IsPublic)
	if err != nil {
		return nil, err
	}
	return &FileOutput{Body: toFileResponse(f)}, nil
}

func (s *Server) handleUpdateFile(ctx context.Context, input *UpdateFileInput) (*FileOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	f, err := s.services.Library.SetFilePublic(ctx, ownerID, input.ID, input.Body.IsPublic)
	if err != nil {
		return nil, err
	}
	return &FileOutput{Body: toFileResponse(f)}, nil
}

func (s *Server) handleGetVisibility(ctx context.Context, _ *struct{}) (*VisibilityOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := s.services.Library.Visibility(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &VisibilityOutput{Body: VisibilityResponse{
		Public:  nonNil(snap.PublicIDs()),
		Private: nonNil(snap.PrivateIDs()),
	}}, nil
}

func toFileResponse(f *domain.File) FileResponse {
	return FileResponse{
		ID:            f.ID,
		OwnerID:       f.OwnerID,
		Filename:      f.Filename,
		CID:           f.CID,
		IsPublic:      f.IsPublic,
		CollectionIDs: nonNil(f.CollectionIDs),
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
