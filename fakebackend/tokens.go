package fakebackend

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	refreshTokenBytes = 32
	issuer            = "bookclub-fakebackend"

	// claimGeneration ties an access token to the issuer generation it was minted in.
	claimGeneration = "gen"
)

var (
	errTokenExpired       = errors.New("token expired")
	errTokenRevoked       = errors.New("token revoked")
	errRefreshTokenAbsent = errors.New("refresh token not found")
)

// accessTokens mints and verifies HS256 access tokens. Bumping the generation
// invalidates every token minted before it.
type accessTokens struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time

	mu         sync.RWMutex
	generation int64
}

func (a *accessTokens) create(userID string) (string, error) {
	a.mu.RLock()
	gen := a.generation
	a.mu.RUnlock()

	now := a.now()
	claims := jwtlib.MapClaims{
		"iss":           issuer,
		"sub":           userID,
		"iat":           now.Unix(),
		"exp":           now.Add(a.expiry).Unix(),
		"jti":           uuid.New().String(), // Unique token ID
		claimGeneration: gen,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("[accessTokens.create] failed to sign token: %w", err)
	}
	return signed, nil
}

// verify returns the token's subject.
func (a *accessTokens) verify(tokenStr string) (string, error) {
	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(issuer),
		jwtlib.WithTimeFunc(a.now),
		jwtlib.WithExpirationRequired(),
	)
	claims := jwtlib.MapClaims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return "", errTokenExpired
		}
		return "", fmt.Errorf("[accessTokens.verify] %w", err)
	}

	gen, _ := claims[claimGeneration].(float64)
	a.mu.RLock()
	current := a.generation
	a.mu.RUnlock()
	if int64(gen) < current {
		return "", errTokenRevoked
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("[accessTokens.verify] missing subject")
	}
	return sub, nil
}

// expireAll invalidates every access token issued so far.
func (a *accessTokens) expireAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.generation++
}

type storedRefreshToken struct {
	userID string
	iat    time.Time
}

// rotation records what a consumed refresh token was exchanged for.
type rotation struct {
	replacement string
	at          time.Time
}

// refreshGraceWindow is how long a rotated-out refresh token keeps resolving to
// its replacement, so parallel refreshes from one client all succeed.
const refreshGraceWindow = 10 * time.Second

// refreshTokens holds opaque refresh tokens; each is rotated on refresh.
type refreshTokens struct {
	expiry time.Duration
	now    func() time.Time

	mu      sync.Mutex
	tokens  map[string]storedRefreshToken
	rotated map[string]rotation
}

func newRefreshTokens(expiry time.Duration, now func() time.Time) *refreshTokens {
	return &refreshTokens{
		expiry:  expiry,
		now:     now,
		tokens:  make(map[string]storedRefreshToken),
		rotated: make(map[string]rotation),
	}
}

func randomToken() (string, error) {
	tokenBytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(tokenBytes), nil
}

func (r *refreshTokens) create(userID string) (string, error) {
	tokenStr, err := randomToken()
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenStr] = storedRefreshToken{userID: userID, iat: r.now()}
	return tokenStr, nil
}

// rotate consumes token and issues its replacement for the same user. A token
// rotated out less than refreshGraceWindow ago yields the live token it was
// replaced by instead of failing.
func (r *refreshTokens) rotate(token string) (userID, replacement string, err error) {
	replacement, err = randomToken()
	if err != nil {
		return "", "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()

	if stored, ok := r.tokens[token]; ok {
		delete(r.tokens, token)
		if now.Sub(stored.iat) > r.expiry {
			return "", "", errTokenExpired
		}
		for old, rot := range r.rotated {
			if now.Sub(rot.at) > refreshGraceWindow {
				delete(r.rotated, old)
			}
		}
		r.tokens[replacement] = storedRefreshToken{userID: stored.userID, iat: now}
		r.rotated[token] = rotation{replacement: replacement, at: now}
		return stored.userID, replacement, nil
	}

	// Follow the rotation chain to the token that is live now.
	current := token
	for {
		rot, ok := r.rotated[current]
		if !ok || now.Sub(rot.at) > refreshGraceWindow {
			return "", "", errRefreshTokenAbsent
		}
		if stored, live := r.tokens[rot.replacement]; live {
			return stored.userID, rot.replacement, nil
		}
		current = rot.replacement
	}
}

func (r *refreshTokens) delete(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
}

func (r *refreshTokens) revokeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = make(map[string]storedRefreshToken)
	r.rotated = make(map[string]rotation)
}

// resetTokens maps password-reset tokens to account ids.
type resetTokens struct {
	mu     sync.Mutex
	tokens map[string]string
	latest map[string]string // account id to most recent token
}

func newResetTokens() *resetTokens {
	return &resetTokens{tokens: make(map[string]string), latest: make(map[string]string)}
}

func (r *resetTokens) create(accountID string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.latest[accountID]; ok {
		delete(r.tokens, old)
	}
	r.tokens[token] = accountID
	r.latest[accountID] = token
	return token, nil
}

func (r *resetTokens) consume(token string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.tokens[token]
	if ok {
		delete(r.tokens, token)
		delete(r.latest, id)
	}
	return id, ok
}

func (r *resetTokens) latestFor(accountID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.latest[accountID]
	return t, ok
}
