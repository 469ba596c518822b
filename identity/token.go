package identity

import (
	"context"
	"errors"
	"fmt"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// FetchJWKS loads a provider's signing keys from its JWKS endpoint.
func FetchJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	set, err := jwk.Fetch(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks %s: %w", jwksURL, err)
	}
	return set, nil
}

// AssertionFromIDToken verifies an ID token against the provider's key set
// and maps its claims into a normalized Assertion.
//
// Claim mapping: sub (required), email, name (falling back to
// preferred_username), picture. Any role-like claims are ignored on purpose;
// roles live on the materialized profile, never on the assertion.
func AssertionFromIDToken(providerID, rawToken string, keys jwk.Set) (*Assertion, error) {
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(rawToken, claims, keyfuncFromJWKS(keys),
		jwt.WithValidMethods([]string{"RS256", "ES256"}))
	if err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}
	if !tok.Valid {
		return nil, errors.New("id token rejected")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("id token missing sub")
	}
	a := &Assertion{ProviderID: providerID, SubjectID: sub}
	a.Email, _ = claims["email"].(string)
	if name, ok := claims["name"].(string); ok && name != "" {
		a.DisplayName = name
	} else if pu, ok := claims["preferred_username"].(string); ok {
		a.DisplayName = pu
	}
	a.AvatarURL, _ = claims["picture"].(string)
	return a, nil
}

func keyfuncFromJWKS(keys jwk.Set) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token missing kid header")
		}
		key, ok := keys.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		var raw any
		if err := key.Raw(&raw); err != nil {
			return nil, fmt.Errorf("materialize key %q: %w", kid, err)
		}
		return raw, nil
	}
}
