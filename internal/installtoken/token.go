package installtoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultTTL is the default lifetime of an installation token.
	DefaultTTL = 180 * 24 * time.Hour
	// DefaultLeeway is clock skew tolerance for token validation.
	DefaultLeeway = 30 * time.Second
	// DefaultIssuer is the iss claim written into installation tokens.
	DefaultIssuer = "gauge-stylist"
	// MinSecretLength is the minimum HS256 secret length accepted.
	MinSecretLength = 32
)

var (
	// ErrInvalidToken is returned for malformed, expired or foreign tokens.
	ErrInvalidToken = errors.New("invalid installation token")
)

// Options configures the Issuer.
type Options struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Leeway time.Duration
	Now    func() time.Time
}

// Issuer signs and verifies bearer tokens that bind a client to an installation id.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// NewIssuer validates options and returns an Issuer using HS256.
func NewIssuer(opts Options) (*Issuer, error) {
	if len(opts.Secret) < MinSecretLength {
		return nil, fmt.Errorf("installation token secret must be at least %d bytes", MinSecretLength)
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	leeway := opts.Leeway
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		secret: []byte(opts.Secret),
		issuer: issuer,
		ttl:    ttl,
		leeway: leeway,
		now:    now,
	}, nil
}

// Issue returns a signed token whose subject is installationID.
func (i *Issuer) Issue(installationID string) (string, error) {
	installationID = strings.TrimSpace(installationID)
	if installationID == "" {
		return "", errors.New("installation id is required")
	}
	now := i.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   installationID,
		Audience:  jwt.ClaimStrings{i.issuer},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify checks signature and registered claims and returns the installation id.
func (i *Issuer) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.issuer),
		jwt.WithLeeway(i.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return subject, nil
}
