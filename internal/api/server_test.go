package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slatehq/slate-server/internal/journal"
	"github.com/slatehq/slate-server/internal/ratelimit"
	"github.com/slatehq/slate-server/internal/search"
	"github.com/slatehq/slate-server/internal/service"
	"github.com/slatehq/slate-server/internal/sse"
	"github.com/slatehq/slate-server/internal/store"
	"github.com/slatehq/slate-server/internal/validation"
)

const ownerHeader = OwnerHeader + ": user-a"

// testEnvelope mirrors response.Envelope with a typed payload.
type testEnvelope[T any] struct {
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details"`
}

type testServer struct {
	*Server
	api     humatest.TestAPI
	store   *store.Store
	index   *search.SearchIndex
	journal *journal.Journal
}

func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	st, err := store.New(store.Options{InMemory: true, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	index, err := search.NewSearchIndex(search.Options{InMemory: true, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	jr, err := journal.Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = jr.Close() })

	searchService := service.NewSearchService(index, st, service.SearchOptions{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		Timeout:        time.Second,
	}, logger)
	emitterOpts := service.EmitterOptions{Concurrent: true, Journal: jr}
	if opts.Events != nil {
		emitterOpts.Events = opts.Events
	}
	emitter := service.NewIndexSyncEmitter(searchService, emitterOpts, logger)
	renamer := service.NewRenameResolver(st, validation.New())

	services := &Services{
		Collection: service.NewCollectionService(st, renamer, emitter, logger),
		Library:    service.NewLibraryService(st, renamer, emitter, logger),
		Reconcile:  service.NewReconcileService(st, searchService, emitter, jr, logger),
	}

	srv := NewServer(services, &Backends{Store: st, Index: index, Journal: jr}, opts, logger)

	return &testServer{
		Server:  srv,
		api:     humatest.Wrap(t, srv.API()),
		store:   st,
		index:   index,
		journal: jr,
	}
}

func decodeEnvelope[T any](t *testing.T, resp *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	assert.Equal(t, 1, env.V, "every envelope carries the version")
	return env
}

func (ts *testServer) createFile(t *testing.T, name string, public bool) FileResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/files", ownerHeader, map[string]any{
		"filename":  name,
		"is_public": public,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decodeEnvelope[FileResponse](t, resp).Data
}

func (ts *testServer) createCollection(t *testing.T, name string) CollectionResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/collections", ownerHeader, map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decodeEnvelope[CollectionResponse](t, resp).Data
}

func (ts *testServer) addFile(t *testing.T, collectionID, fileID string) {
	t.Helper()
	resp := ts.api.Post("/api/v1/collections/"+collectionID+"/files", ownerHeader, map[string]any{"file_id": fileID})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func (ts *testServer) indexed(t *testing.T, id string) bool {
	t.Helper()
	ok, err := ts.index.Contains(id)
	require.NoError(t, err)
	return ok
}

func TestUpdateCollection_PublishIndexesMembers(t *testing.T) {
	ts := setupTestServer(t, Options{})

	file := ts.createFile(t, "beach.jpg", false)
	coll := ts.createCollection(t, "Road Trip")
	ts.addFile(t, coll.ID, file.ID)
	assert.False(t, ts.indexed(t, file.ID))

	resp := ts.api.Patch("/api/v2/collections/"+coll.ID, ownerHeader, map[string]any{"is_public": true})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	env := decodeEnvelope[CollectionResponse](t, resp)
	assert.True(t, env.Success)
	assert.True(t, env.Data.IsPublic)
	assert.Equal(t, []string{file.ID}, env.Data.FileIDs)

	assert.True(t, ts.indexed(t, file.ID))
	assert.True(t, ts.indexed(t, coll.ID))
}

func TestUpdateSlate_LegacyShapeUnpublishes(t *testing.T) {
	ts := setupTestServer(t, Options{})

	file := ts.createFile(t, "beach.jpg", false)
	coll := ts.createCollection(t, "Road Trip")
	ts.addFile(t, coll.ID, file.ID)

	resp := ts.api.Patch("/api/v1/slates/"+coll.ID, ownerHeader, map[string]any{
		"data": map[string]any{"public": true},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.True(t, ts.indexed(t, file.ID))

	resp = ts.api.Patch("/api/v1/slates/"+coll.ID, ownerHeader, map[string]any{
		"data": map[string]any{"public": false, "name": "Road Trip 2024"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	env := decodeEnvelope[CollectionResponse](t, resp)
	assert.False(t, env.Data.IsPublic)
	assert.Equal(t, "road-trip-2024", env.Data.Slug)
	assert.False(t, ts.indexed(t, file.ID))
	assert.False(t, ts.indexed(t, coll.ID))
}

func TestUpdateCollection_ErrorCodes(t *testing.T) {
	ts := setupTestServer(t, Options{})

	ts.createCollection(t, "Holidays")
	coll := ts.createCollection(t, "Road Trip")

	tests := []struct {
		name   string
		path   string
		header string
		body   map[string]any
		status int
		code   string
	}{
		{"missing owner", "/api/v2/collections/" + coll.ID, "Accept: application/json", map[string]any{"is_public": true}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown collection", "/api/v2/collections/coll-missing", ownerHeader, map[string]any{"is_public": true}, http.StatusNotFound, "COLLECTION_NOT_FOUND"},
		{"other owner", "/api/v2/collections/" + coll.ID, OwnerHeader + ": user-b", map[string]any{"is_public": true}, http.StatusForbidden, "NOT_OWNER"},
		{"blank name", "/api/v2/collections/" + coll.ID, ownerHeader, map[string]any{"name": "   "}, http.StatusBadRequest, "INVALID_NAME"},
		{"name taken", "/api/v2/collections/" + coll.ID, ownerHeader, map[string]any{"name": "holidays"}, http.StatusConflict, "NAME_TAKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Patch(tt.path, tt.header, tt.body)
			require.Equal(t, tt.status, resp.Code, resp.Body.String())

			env := decodeEnvelope[any](t, resp)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Code)
			assert.NotEmpty(t, env.Error)
		})
	}

	resp := ts.api.Patch("/api/v2/collections/"+coll.ID, ownerHeader, map[string]any{"name": "Holidays!"})
	details, ok := decodeEnvelope[any](t, resp).Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "holidays", details["slug"])
}

func TestUpdateCollection_RejectsMalformedBody(t *testing.T) {
	ts := setupTestServer(t, Options{})
	coll := ts.createCollection(t, "Road Trip")

	resp := ts.api.Patch("/api/v2/collections/"+coll.ID, ownerHeader, map[string]any{"is_public": "yes"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "VALIDATION", decodeEnvelope[any](t, resp).Code)
}

func TestCollectionMembership(t *testing.T) {
	ts := setupTestServer(t, Options{})

	file := ts.createFile(t, "a.jpg", false)
	coll := ts.createCollection(t, "Road Trip")
	ts.addFile(t, coll.ID, file.ID)
	ts.addFile(t, coll.ID, file.ID)

	resp := ts.api.Get("/api/v1/collections/"+coll.ID, ownerHeader)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	detail := decodeEnvelope[CollectionDetailResponse](t, resp).Data
	assert.Equal(t, []string{file.ID}, detail.FileIDs)
	require.Len(t, detail.Files, 1)
	assert.Equal(t, "a.jpg", detail.Files[0].Filename)

	resp = ts.api.Delete("/api/v1/collections/"+coll.ID+"/files/"+file.ID, ownerHeader)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/collections/"+coll.ID, ownerHeader)
	assert.Empty(t, decodeEnvelope[CollectionDetailResponse](t, resp).Data.FileIDs)
}

func TestDeleteCollection_RemovesFromIndex(t *testing.T) {
	ts := setupTestServer(t, Options{})

	file := ts.createFile(t, "a.jpg", false)
	coll := ts.createCollection(t, "Road Trip")
	ts.addFile(t, coll.ID, file.ID)
	resp := ts.api.Patch("/api/v2/collections/"+coll.ID, ownerHeader, map[string]any{"is_public": true})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/v1/collections/"+coll.ID, ownerHeader)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	assert.False(t, ts.indexed(t, file.ID))
	assert.False(t, ts.indexed(t, coll.ID))

	resp = ts.api.Get("/api/v1/collections/"+coll.ID, ownerHeader)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestFiles_FlagAndVisibility(t *testing.T) {
	ts := setupTestServer(t, Options{})

	shown := ts.createFile(t, "shown.jpg", true)
	hidden := ts.createFile(t, "hidden.jpg", false)
	assert.True(t, ts.indexed(t, shown.ID))

	resp := ts.api.Get("/api/v1/visibility", ownerHeader)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	vis := decodeEnvelope[VisibilityResponse](t, resp).Data
	assert.Equal(t, []string{shown.ID}, vis.Public)
	assert.Equal(t, []string{hidden.ID}, vis.Private)

	resp = ts.api.Patch("/api/v1/files/"+shown.ID, ownerHeader, map[string]any{"is_public": false})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.False(t, decodeEnvelope[FileResponse](t, resp).Data.IsPublic)
	assert.False(t, ts.indexed(t, shown.ID))

	resp = ts.api.Patch("/api/v1/files/"+hidden.ID, OwnerHeader+": user-b", map[string]any{"is_public": true})
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestListCollections_Paginates(t *testing.T) {
	ts := setupTestServer(t, Options{})
	for _, name := range []string{"One", "Two", "Three"} {
		ts.createCollection(t, name)
	}

	resp := ts.api.Get("/api/v1/collections?limit=2", ownerHeader)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	first := decodeEnvelope[ListCollectionsResponse](t, resp).Data
	assert.Len(t, first.Collections, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, 3, first.Total)

	resp = ts.api.Get("/api/v1/collections?limit=2&cursor="+first.NextCursor, ownerHeader)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	second := decodeEnvelope[ListCollectionsResponse](t, resp).Data
	assert.Len(t, second.Collections, 1)
	assert.False(t, second.HasMore)

	resp = ts.api.Get("/api/v1/collections", OwnerHeader+": user-b")
	assert.Empty(t, decodeEnvelope[ListCollectionsResponse](t, resp).Data.Collections)
}

func TestReconcile_RepairsIndex(t *testing.T) {
	ts := setupTestServer(t, Options{})

	file := ts.createFile(t, "a.jpg", true)
	require.NoError(t, ts.index.DeleteDocument(file.ID))

	resp := ts.api.Post("/api/v1/reconcile", ownerHeader)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	report := decodeEnvelope[service.ReconcileReport](t, resp).Data
	assert.Equal(t, []string{file.ID}, report.FilesAdded)
	assert.Zero(t, report.Failed)
	assert.True(t, ts.indexed(t, file.ID))
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	health := decodeEnvelope[HealthResponse](t, resp).Data
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["database"].Status)
	assert.Equal(t, "healthy", health.Components["search"].Status)
	assert.Equal(t, "healthy", health.Components["journal"].Status)
}

func TestHealthCheck_UnresolvedFailuresDegrade(t *testing.T) {
	ts := setupTestServer(t, Options{})

	_, err := ts.journal.Record(t.Context(), journal.Entry{
		OwnerID: "user-a",
		Target:  journal.TargetFiles,
		Op:      "ADD",
		IDs:     []string{"file-1"},
		Error:   "index unavailable",
	})
	require.NoError(t, err)

	resp := ts.api.Get("/health")
	health := decodeEnvelope[HealthResponse](t, resp).Data
	assert.Equal(t, "degraded", health.Status)
	assert.Contains(t, health.Components["journal"].Message, "1 unresolved")
}

func TestHealthCheck_NoBackends(t *testing.T) {
	srv := NewServer(&Services{}, nil, Options{}, slog.New(slog.DiscardHandler))
	api := humatest.Wrap(t, srv.API())

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "degraded", decodeEnvelope[HealthResponse](t, resp).Data.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.api.Get("/health")

	w := httptest.NewRecorder()
	ts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "slate_http_requests_total")
}

func TestRateLimit_MutationsPerOwner(t *testing.T) {
	limiter := ratelimit.New(0.001, 1)
	t.Cleanup(limiter.Stop)
	ts := setupTestServer(t, Options{Limiter: limiter})

	ts.createCollection(t, "One")

	resp := ts.api.Post("/api/v1/collections", ownerHeader, map[string]any{"name": "Two"})
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	env := decodeEnvelope[any](t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, "RATE_LIMITED", env.Code)

	// Reads and other owners are not affected.
	resp = ts.api.Get("/api/v1/collections", ownerHeader)
	assert.Equal(t, http.StatusOK, resp.Code)
	resp = ts.api.Post("/api/v1/collections", OwnerHeader+": user-b", map[string]any{"name": "Two"})
	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestEventsRoute(t *testing.T) {
	ts := setupTestServer(t, Options{})
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "unmounted without a manager")

	events := sse.NewManager(nil)
	ts = setupTestServer(t, Options{Events: events})
	w = httptest.NewRecorder()
	ts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Publishing a collection queues index events for the owner.
	coll := ts.createCollection(t, "Live")
	f := ts.createFile(t, "a.jpg", false)
	ts.addFile(t, coll.ID, f.ID)
	client, err := events.Connect("user-a")
	require.NoError(t, err)
	t.Cleanup(func() { events.Disconnect(client.ID) })

	resp := ts.api.Patch("/api/v2/collections/"+coll.ID, ownerHeader, map[string]any{"is_public": true})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	require.NoError(t, events.Shutdown(ctx))

	var synced int
	for ev := range client.EventChan {
		if ev.Type == sse.EventIndexSynced {
			synced++
		}
	}
	assert.Equal(t, 2, synced, "file ADD and collection ADD")
}
