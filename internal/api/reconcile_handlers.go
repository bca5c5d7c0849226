package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/slatehq/slate-server/internal/service"
)

func (s *Server) registerReconcileRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "reconcileIndex",
		Method:      http.MethodPost,
		Path:        "/api/v1/reconcile",
		Summary:     "Reconcile search index",
		Description: "Compares the caller's indexed documents with the store and repairs any divergence",
		Tags:        []string{"Index"},
		Security:    []map[string][]string{{"owner": {}}},
	}, s.handleReconcile)
}

// ReconcileOutput wraps the repair report for Huma.
type ReconcileOutput struct {
	Body *service.ReconcileReport
}

func (s *Server) handleReconcile(ctx context.Context, _ *struct{}) (*ReconcileOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	report, err := s.services.Reconcile.ReconcileOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &ReconcileOutput{Body: report}, nil
}
