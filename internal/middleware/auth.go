package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/directchat/internal/model"
	"github.com/shinyyama/directchat/internal/reqctx"
	"github.com/shinyyama/directchat/internal/service"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a bearer token into the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (service.Identity, error)
}

type FirebaseVerifier struct {
	authClient *auth.Client
}

func NewFirebaseVerifier(ctx context.Context, projectID string) (*FirebaseVerifier, error) {
	if projectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID is not set")
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &FirebaseVerifier{authClient: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (service.Identity, error) {
	tok, err := v.authClient.VerifyIDToken(ctx, token)
	if err != nil {
		return service.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id := service.Identity{UID: tok.UID}
	id.Name, _ = tok.Claims["name"].(string)
	id.Email, _ = tok.Claims["email"].(string)
	id.Picture, _ = tok.Claims["picture"].(string)
	return id, nil
}

// Claims is the HS256 token body used when Firebase is not configured.
type Claims struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (service.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return service.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return service.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return service.Identity{
		UID:     claims.Subject,
		Name:    claims.Name,
		Email:   claims.Email,
		Picture: claims.Picture,
	}, nil
}

// IssueToken signs an HS256 token for id valid for ttl.
func IssueToken(secret string, id service.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name:    id.Name,
		Email:   id.Email,
		Picture: id.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// UserEnsurer keeps the user directory in step with verified identities.
type UserEnsurer interface {
	Ensure(ctx context.Context, id service.Identity) (*model.User, error)
}

type AuthMiddleware struct {
	verifier Verifier
	users    UserEnsurer
}

// NewAuthMiddleware takes a nil users when directory sync is not wanted.
func NewAuthMiddleware(verifier Verifier, users UserEnsurer) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, users: users}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenStr := bearerToken(c.Request())
		if tokenStr == "" {
			return c.JSON(http.StatusUnauthorized, errorBody("unauthorized", "missing token"))
		}
		id, err := m.verifier.Verify(c.Request().Context(), tokenStr)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorBody("invalid_token", "invalid token"))
		}
		ctx := reqctx.WithUserID(c.Request().Context(), id.UID)
		c.SetRequest(c.Request().WithContext(ctx))
		if m.users != nil {
			if _, err := m.users.Ensure(ctx, id); err != nil {
				return c.JSON(http.StatusInternalServerError, errorBody("internal", "failed to load user"))
			}
		}
		c.Set("uid", id.UID)
		c.Set("identity", id)
		return next(c)
	}
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter that browsers use for websocket upgrades.
func bearerToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func errorBody(code, message string) map[string]any {
	return map[string]any{"error": map[string]string{"code": code, "message": message}}
}
