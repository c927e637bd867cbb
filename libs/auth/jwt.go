package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type VerifierConfig struct {
	// HMACSecret enables HS256 tokens (local/dev issuers).
	HMACSecret string
	// JWKS enables RS256 tokens whose kid resolves through the key set.
	JWKS     *JWKSClient
	Issuer   string
	Audience string
}

// Verifier turns a bearer token into an Identity.
type Verifier struct {
	secret []byte
	jwks   *JWKSClient
	parser *jwt.Parser
}

func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.HMACSecret == "" && cfg.JWKS == nil {
		return nil, errors.New("auth: either an HMAC secret or a JWKS client is required")
	}
	methods := []string{}
	if cfg.HMACSecret != "" {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if cfg.JWKS != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Verifier{
		secret: []byte(cfg.HMACSecret),
		jwks:   cfg.JWKS,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Verify checks the signature and registered claims. The subject must be the user's UUID.
func (v *Verifier) Verify(token string) (Identity, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(strings.TrimSpace(token), claims, v.keyfunc)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return Identity{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Identity{UserID: claims.Subject, Role: role}, nil
}

func (v *Verifier) keyfunc(t *jwt.Token) (any, error) {
	switch t.Method.Alg() {
	case jwt.SigningMethodHS256.Alg():
		return v.secret, nil
	case jwt.SigningMethodRS256.Alg():
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return v.jwks.Get(kid)
	default:
		return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
	}
}

// SignHS256 issues a token for local development and tests.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
