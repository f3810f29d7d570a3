package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"

	"github.com/your-org/eventlens/internal/config"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Roles  []string
}

func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Verifier turns a raw bearer token into a Principal.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Principal, error)
}

// OIDCVerifier verifies ID tokens issued by the configured provider.
type OIDCVerifier struct {
	verifier  *oidc.IDTokenVerifier
	roleClaim string
}

// NewOIDCVerifier fetches the provider's discovery document, so it needs the
// issuer to be reachable at startup.
func NewOIDCVerifier(ctx context.Context, cfg config.AuthConfig) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	return &OIDCVerifier{
		verifier:  provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		roleClaim: cfg.RoleClaim,
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	return principalFromClaims(claims, v.roleClaim)
}

// principalFromClaims reads sub, email and the role claim. The role claim
// may be a single string or a list of strings.
func principalFromClaims(claims map[string]any, roleClaim string) (*Principal, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("token has no subject")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("subject is not a user id: %w", err)
	}

	p := &Principal{UserID: id}
	p.Email, _ = claims["email"].(string)

	switch roles := claims[roleClaim].(type) {
	case string:
		p.Roles = []string{roles}
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok {
				p.Roles = append(p.Roles, s)
			}
		}
	}
	return p, nil
}
