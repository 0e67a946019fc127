package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adhera-labs/adhera-backend/internal/entitlements"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
)

type fakeEntitlementService struct {
	cancelled []uuid.UUID
	deleted   []uuid.UUID
	statuses  []entitlements.MembershipStatus
	err       error
}

func (f *fakeEntitlementService) CancelRenewal(_ context.Context, membershipID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, membershipID)
	return nil
}

func (f *fakeEntitlementService) Delete(_ context.Context, membershipID uuid.UUID, _ enums.SubjectType, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, membershipID)
	return nil
}

func (f *fakeEntitlementService) StatusForSubject(context.Context, enums.SubjectType, string) ([]entitlements.MembershipStatus, error) {
	return f.statuses, f.err
}

func membershipRouter(svc entitlements.Service) http.Handler {
	r := chi.NewRouter()
	r.Get("/memberships/status/{subjectID}/{subjectType}", MembershipStatus(svc, nil))
	r.Post("/memberships/{id}/terminate", MembershipTerminate(svc, nil))
	r.Delete("/memberships/{id}", MembershipDelete(svc, nil))
	return r
}

func TestMembershipTerminate(t *testing.T) {
	svc := &fakeEntitlementService{}
	router := membershipRouter(svc)
	id := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/memberships/"+id.String()+"/terminate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.cancelled) != 1 || svc.cancelled[0] != id {
		t.Fatalf("unexpected cancellations: %v", svc.cancelled)
	}
}

func TestMembershipTerminateInvalidID(t *testing.T) {
	router := membershipRouter(&fakeEntitlementService{})

	req := httptest.NewRequest(http.MethodPost, "/memberships/not-a-uuid/terminate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMembershipTerminateStateConflict(t *testing.T) {
	svc := &fakeEntitlementService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "membership already cancelled")}
	router := membershipRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/memberships/"+uuid.NewString()+"/terminate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on state conflict, got %d", rec.Code)
	}
}

func TestMembershipDelete(t *testing.T) {
	svc := &fakeEntitlementService{}
	router := membershipRouter(svc)
	id := uuid.New()

	body := `{"subject_type":"user","subject_id":"U1"}`
	req := httptest.NewRequest(http.MethodDelete, "/memberships/"+id.String(), strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != id {
		t.Fatalf("unexpected deletions: %v", svc.deleted)
	}
}

func TestMembershipDeleteRejectsUnknownSubjectType(t *testing.T) {
	router := membershipRouter(&fakeEntitlementService{})

	body := `{"subject_type":"store","subject_id":"S1"}`
	req := httptest.NewRequest(http.MethodDelete, "/memberships/"+uuid.NewString(), strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMembershipStatusParsesSubject(t *testing.T) {
	svc := &fakeEntitlementService{statuses: []entitlements.MembershipStatus{}}
	router := membershipRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/memberships/status/U1/user", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestMembershipStatusInvalidSubjectType(t *testing.T) {
	router := membershipRouter(&fakeEntitlementService{})

	req := httptest.NewRequest(http.MethodGet, "/memberships/status/U1/robot", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
