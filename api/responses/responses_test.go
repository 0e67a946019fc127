package responses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
)

func TestWriteSuccessEnvelopesData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data["hello"] != "world" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestWriteErrorMapsCodeToStatus(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		code   pkgerrors.Code
	}{
		"validation":     {pkgerrors.New(pkgerrors.CodeValidation, "bad input"), http.StatusBadRequest, pkgerrors.CodeValidation},
		"signature":      {pkgerrors.New(pkgerrors.CodeSignature, "bad signature"), http.StatusBadRequest, pkgerrors.CodeSignature},
		"not found":      {pkgerrors.New(pkgerrors.CodeNotFound, "missing"), http.StatusNotFound, pkgerrors.CodeNotFound},
		"state conflict": {pkgerrors.New(pkgerrors.CodeStateConflict, "still active"), http.StatusBadRequest, pkgerrors.CodeStateConflict},
		"dependency":     {pkgerrors.New(pkgerrors.CodeDependency, "upstream down"), http.StatusInternalServerError, pkgerrors.CodeDependency},
		"untyped":        {context.DeadlineExceeded, http.StatusInternalServerError, pkgerrors.CodeInternal},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), nil, rec, tc.err)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			var envelope struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if envelope.Error.Code != string(tc.code) {
				t.Fatalf("expected code %s, got %s", tc.code, envelope.Error.Code)
			}
		})
	}
}

func TestWriteErrorHidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeInternal, "connection string leaked"))

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Error.Message != "internal server error" {
		t.Fatalf("internal details must not leak, got %q", envelope.Error.Message)
	}
}
