package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stocksaas/stocksaas/internal/platform/httpx"
	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

// PrincipalLoader rebuilds a principal from verified claims.
type PrincipalLoader interface {
	Load(ctx context.Context, claims *Claims) (*Principal, error)
}

// Middleware authenticates bearer tokens.
type Middleware struct {
	Tokens      *TokenManager
	Revocations RevocationStore
	Tenants     TenantResolver
	// Loader reloads the principal from storage. When nil the principal is taken from the token.
	Loader PrincipalLoader
	Logger *slog.Logger
}

type claimsKey struct{}

// ClaimsFrom returns the verified token claims of the request.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// Authenticate resolves the bearer token of the request, binds its tenant to the unit of work
// and stores the principal. Requests without an Authorization header pass through anonymous.
// It must run inside tenant.Middleware.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		p, claims, err := m.authenticate(ctx, header)
		if err != nil {
			httpx.RespondError(w, r, m.Logger, err)
			return
		}
		if err := tenant.Set(ctx, p.TenantID); err != nil {
			httpx.RespondError(w, r, m.Logger, err)
			return
		}
		ctx = context.WithValue(WithPrincipal(ctx, p), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) authenticate(ctx context.Context, header string) (*Principal, *Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil, shared.Unauthenticated("malformed authorization header")
	}
	claims, err := m.Tokens.Verify(strings.TrimSpace(raw))
	if err != nil {
		return nil, nil, err
	}
	if m.Revocations != nil {
		revoked, err := m.Revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, err
		}
		if revoked {
			return nil, nil, shared.Unauthenticated("token revoked")
		}
	}
	p, err := claims.Principal()
	if err != nil {
		return nil, nil, err
	}
	t, err := m.Tenants.Lookup(ctx, p.TenantID)
	if err != nil || !t.Active {
		if m.Logger != nil {
			m.Logger.WarnContext(ctx, "token for unknown or inactive tenant", slog.String("tenant_id", p.TenantID.String()))
		}
		return nil, nil, shared.Unauthenticated("tenant not available")
	}
	if m.Loader != nil {
		err = tenant.Run(ctx, p.TenantID, func(ctx context.Context) error {
			p, err = m.Loader.Load(ctx, claims)
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		if p.TenantID.String() != claims.TenantID {
			return nil, nil, ErrInvalidToken
		}
	}
	if !p.Active() {
		return nil, nil, shared.Unauthenticated("account not active")
	}
	return p, claims, nil
}
