// Package token implements the three-segment signed token handed to the
// frontend after login: base64(header).base64(claims).base64(HMAC-SHA256).
//
// Segments use the standard, padded base64 alphabet. The format carries no
// algorithm negotiation or key rotation; a valid token only proves that the
// claims were produced by a holder of the secret and were not altered.
package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	algorithm = "HS256"
	tokenType = "JWT"

	// ClaimIssuedAt and ClaimExpiresAt hold unix seconds
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
)

var (
	// ErrInvalidSignature means the signature does not match the content
	ErrInvalidSignature = errors.New("token signature is invalid")

	// ErrMalformedToken means the token could not be parsed
	ErrMalformedToken = errors.New("token is malformed")

	// ErrTokenExpired means the token was valid but its exp has passed
	ErrTokenExpired = errors.New("token is expired")

	// ErrEmptySecret is returned when signing or verifying without a key
	ErrEmptySecret = errors.New("token secret must not be empty")
)

// Claims is the payload carried by a token
type Claims map[string]any

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

var segmentEncoding = base64.StdEncoding.Strict()

// Issue encodes and signs claims. The output is deterministic for a given
// claims map and secret.
func Issue(claims Claims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}

	headerJSON, err := json.Marshal(header{Alg: algorithm, Typ: tokenType})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode token header")
	}

	if claims == nil {
		claims = Claims{}
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode token claims")
	}

	signingInput := segmentEncoding.EncodeToString(headerJSON) + "." + segmentEncoding.EncodeToString(claimsJSON)

	signature, err := sign(signingInput, secret)
	if err != nil {
		return "", err
	}

	return signingInput + "." + signature, nil
}

func sign(signingInput string, secret []byte) (string, error) {
	signature, err := jwt.SigningMethodHS256.Sign(signingInput, secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	return segmentEncoding.EncodeToString(signature), nil
}

// Verify checks the signature of a token and returns its claims. It does
// not look at exp; use Codec for that.
func Verify(token string, secret []byte) (Claims, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}
	for _, part := range parts {
		if part == "" {
			return nil, ErrMalformedToken
		}
	}

	signingInput := parts[0] + "." + parts[1]

	// Strict decoding keeps the encoding canonical: any other spelling of
	// the same bytes is rejected along with a wrong signature.
	signature, err := segmentEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidSignature
	}

	// hmac.Equal under the hood, constant time.
	if err := jwt.SigningMethodHS256.Verify(signingInput, signature, secret); err != nil {
		return nil, ErrInvalidSignature
	}

	var h header
	if err := decodeSegment(parts[0], &h); err != nil {
		return nil, err
	}
	if h.Alg != algorithm {
		return nil, ErrMalformedToken
	}

	var claims Claims
	if err := decodeSegment(parts[1], &claims); err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, ErrMalformedToken
	}

	return claims, nil
}

func decodeSegment(segment string, v any) error {
	raw, err := segmentEncoding.DecodeString(segment)
	if err != nil {
		return ErrMalformedToken
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrMalformedToken
	}

	return nil
}

// Codec binds a secret and lifetime to Issue and Verify, and enforces exp.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec creates a codec issuing tokens valid for ttl.
func NewCodec(secret []byte, ttl time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		return nil, errors.Errorf("token ttl must be positive, got %s", ttl)
	}

	return &Codec{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// SetNow overrides the time function (for testing).
func (c *Codec) SetNow(fn func() time.Time) {
	c.now = fn
}

// TTL returns the lifetime of issued tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs claims after stamping iat and exp. The caller's map is not
// modified.
func (c *Codec) Issue(claims Claims) (string, error) {
	now := c.now()

	stamped := make(Claims, len(claims)+2)
	for k, v := range claims {
		stamped[k] = v
	}
	stamped[ClaimIssuedAt] = now.Unix()
	stamped[ClaimExpiresAt] = now.Add(c.ttl).Unix()

	return Issue(stamped, c.secret)
}

// Verify checks signature and expiry. Tokens without a numeric exp are
// treated as malformed.
func (c *Codec) Verify(token string) (Claims, error) {
	claims, err := Verify(token, c.secret)
	if err != nil {
		return nil, err
	}

	exp, ok := claims[ClaimExpiresAt].(float64)
	if !ok {
		return nil, ErrMalformedToken
	}
	if !c.now().Before(time.Unix(int64(exp), 0)) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}
