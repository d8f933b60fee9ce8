package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/wisbric/lynex/internal/httpserver"
)

func withIdentity(req *http.Request, projectID string) *http.Request {
	ctx := httpserver.WithIdentity(context.Background(), httpserver.Identity{ProjectID: projectID})
	return req.WithContext(ctx)
}

func TestHandlerCreateAndList(t *testing.T) {
	svc := NewService(newFakeRuleStore())
	h := NewHandler(svc)
	router := h.Routes()

	body, _ := json.Marshal(ruleRequest{Name: "cost alert", Condition: string(ConditionCostThreshold), Threshold: 1.0, Severity: string(SeverityCritical)})
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)), "proj_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", rec.Code, rec.Body.String())
	}

	listReq := withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), "proj_1")
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, listReq)

	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d", listRec.Code)
	}
	var listResp struct {
		Items      []ruleResponse `json:"items"`
		TotalItems int            `json:"total_items"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decoding list response: %v", err)
	}
	if len(listResp.Items) != 1 || listResp.TotalItems != 1 {
		t.Fatalf("list response = %+v", listResp)
	}
}

func TestHandlerRequiresIdentity(t *testing.T) {
	svc := NewService(newFakeRuleStore())
	h := NewHandler(svc)
	router := h.Routes()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHandlerGetUpdateDeleteLifecycle(t *testing.T) {
	store := newFakeRuleStore()
	svc := NewService(store)
	h := NewHandler(svc)
	router := h.Routes()

	created, err := svc.Create(context.Background(), "proj_1", Rule{Name: "r", Condition: ConditionErrorCount, Severity: SeverityWarning})
	if err != nil {
		t.Fatalf("seed Create() error = %v", err)
	}

	getReq := withIdentity(httptest.NewRequest(http.MethodGet, "/"+created.ID, nil), "proj_1")
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status = %d, body: %s", getRec.Code, getRec.Body.String())
	}

	patchBody, _ := json.Marshal(ruleRequest{Name: "renamed", Condition: string(ConditionErrorCount), Severity: string(SeverityCritical)})
	patchReq := withIdentity(httptest.NewRequest(http.MethodPatch, "/"+created.ID, bytes.NewReader(patchBody)), "proj_1")
	patchRec := httptest.NewRecorder()
	router.ServeHTTP(patchRec, patchReq)
	if patchRec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body: %s", patchRec.Code, patchRec.Body.String())
	}

	deleteReq := withIdentity(httptest.NewRequest(http.MethodDelete, "/"+created.ID, nil), "proj_1")
	deleteRec := httptest.NewRecorder()
	router.ServeHTTP(deleteRec, deleteReq)
	if deleteRec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", deleteRec.Code)
	}
}

func TestHandlerGetUnknownIDReturns404(t *testing.T) {
	svc := NewService(newFakeRuleStore())
	h := NewHandler(svc)
	router := h.Routes()

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/"+uuid.New().String(), nil), "proj_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d, body: %s", rec.Code, http.StatusNotFound, rec.Body.String())
	}
}
