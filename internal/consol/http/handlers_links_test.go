package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thinq-erp/consol/internal/hierarchy"
)

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubLinkService struct {
	createFn     func(ctx context.Context, input hierarchy.CreateLinkInput) (hierarchy.Link, error)
	deactivateFn func(ctx context.Context, id, actorID int64) error
	descendants  []int64
}

func (s *stubLinkService) CreateLink(ctx context.Context, input hierarchy.CreateLinkInput) (hierarchy.Link, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return hierarchy.Link{}, nil
}

func (s *stubLinkService) DeactivateLink(ctx context.Context, id, actorID int64) error {
	if s.deactivateFn != nil {
		return s.deactivateFn(ctx, id, actorID)
	}
	return nil
}

func (s *stubLinkService) Descendants(ctx context.Context, root int64, at time.Time, includeSelf bool) ([]int64, error) {
	return s.descendants, nil
}

func newLinkRouter(svc LinkService) *chi.Mux {
	handler := NewLinkHandler(slogDiscard(), svc)
	router := chi.NewRouter()
	handler.MountRoutes(router)
	return router
}

func TestCreateLinkReturnsCreated(t *testing.T) {
	var captured hierarchy.CreateLinkInput
	svc := &stubLinkService{
		createFn: func(ctx context.Context, input hierarchy.CreateLinkInput) (hierarchy.Link, error) {
			captured = input
			return hierarchy.Link{ID: 9, ParentID: input.ParentID, ChildID: input.ChildID, DateFrom: input.DateFrom, Active: true}, nil
		},
	}
	router := newLinkRouter(svc)

	body := `{"parent_id":1,"child_id":2,"date_from":"2024-01-01","note":"acquisition"}`
	req := httptest.NewRequest(http.MethodPost, "/consol/links", strings.NewReader(body))
	req.Header.Set("X-Actor-ID", "7")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ParentID != 1 || captured.ChildID != 2 {
		t.Fatalf("unexpected input %+v", captured)
	}
	if captured.ActorID != 7 {
		t.Fatalf("expected actor 7, got %d", captured.ActorID)
	}
	if !strings.Contains(rr.Body.String(), `"id":9`) {
		t.Fatalf("expected link id in response, got %s", rr.Body.String())
	}
}

func TestCreateLinkRejectsInvalidPayload(t *testing.T) {
	router := newLinkRouter(&stubLinkService{})

	cases := []string{
		`{"parent_id":0,"child_id":2,"date_from":"2024-01-01"}`,
		`{"parent_id":1,"child_id":2,"date_from":"01/01/2024"}`,
		`{"parent_id":1,"child_id":2,"date_from":"2024-06-01","date_to":"2024-01-01"}`,
		`not json`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/consol/links", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", body, rr.Code)
		}
	}
}

func TestCreateLinkMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{hierarchy.ErrOverlap, http.StatusConflict},
		{hierarchy.ErrCycle, http.StatusUnprocessableEntity},
		{hierarchy.ErrSelfLink, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		svc := &stubLinkService{
			createFn: func(ctx context.Context, input hierarchy.CreateLinkInput) (hierarchy.Link, error) {
				return hierarchy.Link{}, tc.err
			},
		}
		router := newLinkRouter(svc)
		body := `{"parent_id":1,"child_id":2,"date_from":"2024-01-01"}`
		req := httptest.NewRequest(http.MethodPost, "/consol/links", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != tc.status {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, rr.Code)
		}
	}
}

func TestDeactivateLink(t *testing.T) {
	svc := &stubLinkService{
		deactivateFn: func(ctx context.Context, id, actorID int64) error {
			if id == 404 {
				return hierarchy.ErrLinkNotFound
			}
			return nil
		},
	}
	router := newLinkRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/consol/links/5", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/consol/links/404", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestDescendantsEndpoint(t *testing.T) {
	router := newLinkRouter(&stubLinkService{descendants: []int64{1, 2, 3}})

	req := httptest.NewRequest(http.MethodGet, "/consol/entities/1/descendants?at=2024-01-31", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"entity_ids":[1,2,3]`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}
