package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what a validated token asserts about the caller: which
// wallet it is, and whether that wallet owns a store ("store") or
// not ("user"). Authorization beyond that is re-checked per handler.
type Claims struct {
	WalletAddress string
	Role          string
}

// secretKey refuses an unset JWT_SECRET: an empty signing key would
// mint tokens anyone can forge.
func secretKey() ([]byte, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET environment variable is not set")
	}
	return []byte(secret), nil
}

// GenerateToken creates a signed JWT for a wallet address and role.
// Tokens expire after 24 hours, matching the session length the
// frontend expects.
func GenerateToken(walletAddress, role string) (string, error) {
	key, err := secretKey()
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"sub":  walletAddress,
		"role": role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// ValidateToken parses and validates a token string and returns the
// claims it carries.
func ValidateToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		key, err := secretKey()
		if err != nil {
			return nil, err
		}
		return key, nil
	})
	if err != nil {
		return Claims{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, errors.New("invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Claims{}, errors.New("invalid subject claim")
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return Claims{}, errors.New("invalid role claim")
	}

	return Claims{WalletAddress: sub, Role: role}, nil
}
