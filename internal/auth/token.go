package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SessionToken is a signed HS256 JWT carrying the resolved identity,
// plus its expiry.  The token is the session: there is no server-side
// session state, so a site admin's tenant binding cannot change until
// the token itself is replaced.
type SessionToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires"`
}

// NewSessionToken signs a token for the identity.  A fresh random
// session id is minted per login so concurrent sessions of the same
// credential stay distinguishable; ReissueToken preserves it instead.
func NewSessionToken(secret string, id Identity, ttlMin int) (SessionToken, error) {
	id.SessionID = uuid.NewString()
	return signToken(secret, id, ttlMin)
}

// ReissueToken signs a replacement token for an already-authenticated
// identity, keeping its session id.  Used by the global admin's
// site-switch, which is the only operation allowed to alter scope.
func ReissueToken(secret string, id Identity, ttlMin int) (SessionToken, error) {
	if id.SessionID == "" {
		id.SessionID = uuid.NewString()
	}
	return signToken(secret, id, ttlMin)
}

func signToken(secret string, id Identity, ttlMin int) (SessionToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  id.CredentialID,
		"role": id.Role,
		"site": id.Site,
		"name": id.Name,
		"sid":  id.SessionID,
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

var errInvalidToken = errors.New("invalid token")

// ParseToken verifies a signed token and reconstructs the Identity.
func ParseToken(secret, raw string) (Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, errInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errInvalidToken
	}
	var id Identity
	if sub, ok := claims["sub"].(float64); ok {
		id.CredentialID = uint64(sub)
	}
	id.Role, _ = claims["role"].(string)
	id.Site, _ = claims["site"].(string)
	id.Name, _ = claims["name"].(string)
	id.SessionID, _ = claims["sid"].(string)
	if id.Role == "" || id.SessionID == "" {
		return Identity{}, errInvalidToken
	}
	return id, nil
}

// HashCode returns the bcrypt hash of an access code.
func HashCode(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyCode compares a bcrypt hash and a presented code in constant
// time, reporting only match or no match.
func VerifyCode(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// codeMask replaces everything past the logged prefix of a code.
const codeMask = "****"

// MaskCode renders the loggable form of a presented access code: the
// first four characters plus a fixed mask.  Codes shorter than four
// characters keep their full prefix; the mask is always appended so
// the audit row never reveals the code length.
func MaskCode(code string) string {
	if len(code) > 4 {
		code = code[:4]
	}
	return code + codeMask
}
