package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oneclick-dev/oneclick/internal/models"
)

const TokenTTL = 7 * 24 * time.Hour

var (
	ErrMissingToken = errors.New("no token found")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// IdentityClaims is the signed session payload. Tokens issued before hashkeys
// existed carry no Hashkey and no UserID, so both are optional.
type IdentityClaims struct {
	ExternalID    string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	VerifiedEmail bool   `json:"verified_email"`
	UserID        uint   `json:"userId,omitempty"`
	Hashkey       string `json:"hashkey,omitempty"`

	jwt.RegisteredClaims
}

// ClaimsForUser builds claims from the current directory record.
func ClaimsForUser(user *models.User) IdentityClaims {
	externalID := user.Email

	if user.GoogleID != nil && *user.GoogleID != "" {
		externalID = *user.GoogleID
	}

	return IdentityClaims{
		ExternalID:    externalID,
		Email:         user.Email,
		Name:          user.Name,
		Picture:       user.Picture,
		VerifiedEmail: user.VerifiedEmail,
		UserID:        user.ID,
		Hashkey:       user.Hashkey,
	}
}

type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: TokenTTL, now: time.Now}
}

func (s *TokenService) Issue(claims IdentityClaims) (string, error) {
	now := s.now()

	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	if claims.UserID != 0 {
		claims.Subject = strconv.FormatUint(uint64(claims.UserID), 10)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.secret)

	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

func (s *TokenService) Verify(tokenString string) (*IdentityClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	var claims IdentityClaims

	if _, err := jwt.ParseWithClaims(tokenString, &claims, s.keyFunc, s.parserOptions()...); err != nil {
		return nil, classify(err)
	}

	return &claims, nil
}

// Decode verifies the token and returns its raw claim map.
func (s *TokenService) Decode(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := jwt.MapClaims{}

	if _, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc, s.parserOptions()...); err != nil {
		return nil, classify(err)
	}

	return claims, nil
}

func (s *TokenService) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, jwt.ErrSignatureInvalid
	}
	return s.secret, nil
}

func (s *TokenService) parserOptions() []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
}

func classify(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpiredToken
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}
