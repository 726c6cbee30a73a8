package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/directchat/internal/model"
	"github.com/shinyyama/directchat/internal/reqctx"
	"github.com/shinyyama/directchat/internal/service"
)

type recordingEnsurer struct {
	got []service.Identity
	err error
}

func (r *recordingEnsurer) Ensure(_ context.Context, id service.Identity) (*model.User, error) {
	r.got = append(r.got, id)
	if r.err != nil {
		return nil, r.err
	}
	return &model.User{ID: id.UID}, nil
}

func TestJWTVerifier(t *testing.T) {
	v := NewJWTVerifier("secret")
	good, err := IssueToken("secret", service.Identity{UID: "u1", Name: "Uno", Email: "u1@example.test"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	expired, _ := IssueToken("secret", service.Identity{UID: "u1"}, -time.Minute)
	foreign, _ := IssueToken("other", service.Identity{UID: "u1"}, time.Hour)
	noSubject, _ := IssueToken("secret", service.Identity{}, time.Hour)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	id, err := v.Verify(context.Background(), good)
	if err != nil {
		t.Fatalf("verify good: %v", err)
	}
	if id.UID != "u1" || id.Name != "Uno" || id.Email != "u1@example.test" {
		t.Fatalf("identity=%+v", id)
	}

	for name, tok := range map[string]string{"expired": expired, "foreign": foreign, "no subject": noSubject, "no expiry": noExpiry, "garbage": "abc"} {
		if _, err := v.Verify(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: err=%v want ErrInvalidToken", name, err)
		}
	}
}

func TestRequireAuth(t *testing.T) {
	tok, err := IssueToken("secret", service.Identity{UID: "u1", Name: "Uno"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		query      string
		ensureErr  error
		wantStatus int
	}{
		{name: "header", header: "Bearer " + tok, wantStatus: http.StatusOK},
		{name: "query", query: "?token=" + tok, wantStatus: http.StatusOK},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + tok, wantStatus: http.StatusUnauthorized},
		{name: "directory down", header: "Bearer " + tok, ensureErr: errors.New("db"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ensurer := &recordingEnsurer{err: tt.ensureErr}
			m := NewAuthMiddleware(NewJWTVerifier("secret"), ensurer)

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var seenUID, ctxUID string
			h := m.RequireAuth(func(c echo.Context) error {
				seenUID, _ = c.Get("uid").(string)
				ctxUID = reqctx.UserID(c.Request().Context())
				return c.NoContent(http.StatusOK)
			})
			if err := h(c); err != nil {
				t.Fatalf("handler err: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				if seenUID != "u1" || ctxUID != "u1" {
					t.Fatalf("uid=%q ctx uid=%q", seenUID, ctxUID)
				}
				if len(ensurer.got) != 1 || ensurer.got[0].Name != "Uno" {
					t.Fatalf("ensure calls=%+v", ensurer.got)
				}
			}
		})
	}
}
