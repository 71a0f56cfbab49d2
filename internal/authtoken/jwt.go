// Package authtoken issues and validates the bearer tokens handed out at
// account creation. Tokens are HS256 JWTs carrying the account address.
package authtoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/millisami/flow-name-service/pkg/domain"
	dErrors "github.com/millisami/flow-name-service/pkg/domain-errors"
)

// Claims are the JWT claims for account access tokens.
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	tokenTTL   time.Duration
}

func NewJWTService(signingKey string, issuer string, audience string, tokenTTL time.Duration) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		tokenTTL:   tokenTTL,
	}
}

// GenerateAccountToken signs a token for the given account address.
func (s *JWTService) GenerateAccountToken(address domain.Address) (string, error) {
	now := time.Now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Address: string(address),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// ValidateToken parses the token and returns the account address it was
// issued for.
func (s *JWTService) ValidateToken(tokenString string) (domain.Address, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.ZeroAddress, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return domain.ZeroAddress, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return domain.ZeroAddress, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return domain.ZeroAddress, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	addr, err := domain.ParseAddress(claims.Address)
	if err != nil {
		return domain.ZeroAddress, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return addr, nil
}
