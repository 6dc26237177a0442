package lookup

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/openfroyo/qlikcloud/pkg/tenant"
)

// JWTAudience is the audience the tenant expects on JWT session tokens.
const JWTAudience = "qlik.api/login/jwt-session"

// OAuthToken returns a client-credentials access token for a tenant.
func OAuthToken(ctx context.Context, hc *http.Client, tenantURI, clientID, clientSecret string) (string, error) {
	tok, err := tenant.FetchToken(ctx, hc, tenantURI, clientID, clientSecret)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// JWTRequest describes the identity carried by a signed JWT.
type JWTRequest struct {
	// PrivateKey is the PEM encoded RSA key the identity provider trusts.
	PrivateKey    []byte
	KeyID         string
	Issuer        string
	Subject       string
	SubjectType   string
	Name          string
	Email         string
	EmailVerified bool
	Groups        []string

	// NotBefore defaults to five seconds ago, ExpiresAt to five minutes
	// from now.
	NotBefore time.Time
	ExpiresAt time.Time

	// ID defaults to a random UUID.
	ID string
}

type sessionClaims struct {
	SubType       string   `json:"subType"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	EmailVerified bool     `json:"email_verified"`
	Groups        []string `json:"groups"`
	jwt.RegisteredClaims
}

// SignJWT creates an RS256 signed JWT for the JWT identity provider.
func SignJWT(req JWTRequest, now time.Time) (string, error) {
	if req.Subject == "" || req.Issuer == "" || req.KeyID == "" {
		return "", fmt.Errorf("subject, issuer and key id are required")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(req.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("invalid signing key: %w", err)
	}
	return sign(key, req, now)
}

func sign(key *rsa.PrivateKey, req JWTRequest, now time.Time) (string, error) {
	if req.SubjectType == "" {
		req.SubjectType = "user"
	}
	if req.NotBefore.IsZero() {
		req.NotBefore = now.Add(-5 * time.Second)
	}
	if req.ExpiresAt.IsZero() {
		req.ExpiresAt = now.Add(5 * time.Minute)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Groups == nil {
		req.Groups = []string{}
	}

	claims := sessionClaims{
		SubType:       req.SubjectType,
		Name:          req.Name,
		Email:         req.Email,
		EmailVerified: req.EmailVerified,
		Groups:        req.Groups,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.Subject,
			Issuer:    req.Issuer,
			Audience:  jwt.ClaimStrings{JWTAudience},
			NotBefore: jwt.NewNumericDate(req.NotBefore),
			ExpiresAt: jwt.NewNumericDate(req.ExpiresAt),
			ID:        req.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = req.KeyID
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
