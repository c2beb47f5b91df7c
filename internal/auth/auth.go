package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// JWTClaims defines the payload for the JWT.
type JWTClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JwtSecret is overridden from config at startup.
var JwtSecret = []byte("CHANGE_ME_IN_CONFIG")

// TokenTTL is the default token lifetime, overridden from config at startup.
var TokenTTL = 24 * time.Hour

// Passwords are salted with the user's normalized email before hashing, so a
// hash is only valid for the account it was created for.

// HashPassword produces a bcrypt hash of password salted with the lowercase email.
func HashPassword(password, email string) (string, error) {
	combined := password + strings.ToLower(strings.TrimSpace(email))
	bytes, err := bcrypt.GenerateFromPassword([]byte(combined), bcrypt.DefaultCost)
	return string(bytes), err
}

var sha256Hex = regexp.MustCompile(`^[a-f0-9]{64}$`)

// CheckPassword verifies password against a stored hash. Legacy accounts may
// hold a hex SHA-256 digest of password+email, or a pre-hash plaintext value;
// both still verify so existing users can log in and be rehashed.
func CheckPassword(password, email, stored string) bool {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return false
	}
	emailNorm := strings.ToLower(strings.TrimSpace(email))
	combined := password + emailNorm
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(combined)) == nil
	}
	if sha256Hex.MatchString(strings.ToLower(stored)) {
		sum := sha256.Sum256([]byte(combined))
		return strings.EqualFold(hex.EncodeToString(sum[:]), stored)
	}
	return stored == strings.TrimSpace(password)
}

// GenerateJWT issues a signed token for a logged-in user.
func GenerateJWT(email, name, role string, expiration time.Duration) (string, error) {
	if expiration <= 0 {
		expiration = TokenTTL
	}
	claims := &JWTClaims{
		Email: email,
		Name:  name,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(JwtSecret)
}

// ParseJWT validates a token string and returns its claims.
func ParseJWT(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return JwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}
