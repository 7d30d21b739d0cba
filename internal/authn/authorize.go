package authn

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"cutman.dev/cutman/internal/store"
)

// TokenPrefix marks the public wire format of every cutman secret.
const TokenPrefix = "ct_"

// lookupChars is the length of the clear-text lookup prefix stored
// alongside the Argon2id hash, letting Authenticate find the candidate row
// with an indexed lookup before paying for the KDF comparison.
const lookupChars = 8

var base32Enc = base32.StdEncoding.WithPadding(base32.NoPadding)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// Service resolves bearer/basic credentials to Principals and manages the
// token lifecycle: issuance, lookup, and revocation.
type Service struct {
	store *store.Store
}

// NewService builds a Service backed by st.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// GenerateSecret produces a new 192-bit token secret in its public
// `ct_<base32>` wire format, plus the lookup prefix and salted hash to
// persist instead of the plaintext.
func GenerateSecret() (plaintext, lookup, hash string, err error) {
	body := make([]byte, 24) // 192 bits
	if _, err = rand.Read(body); err != nil {
		return "", "", "", fmt.Errorf("authn: generate secret: %w", err)
	}
	encoded := base32Enc.EncodeToString(body)
	plaintext = TokenPrefix + encoded
	if len(encoded) < lookupChars {
		return "", "", "", errors.New("authn: encoded secret shorter than lookup prefix")
	}
	lookup = encoded[:lookupChars]
	hash, err = hashSecret(encoded)
	if err != nil {
		return "", "", "", err
	}
	return plaintext, lookup, hash, nil
}

func hashSecret(secret string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("authn: salt: %w", err)
	}
	digest := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("argon2id$%s$%s",
		base32Enc.EncodeToString(salt),
		base32Enc.EncodeToString(digest),
	), nil
}

func verifySecret(secret, encoded string) bool {
	parts := strings.SplitN(encoded, "$", 3)
	if len(parts) != 3 || parts[0] != "argon2id" {
		return false
	}
	salt, err := base32Enc.DecodeString(parts[1])
	if err != nil {
		return false
	}
	want, err := base32Enc.DecodeString(parts[2])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// Authenticate resolves a presented secret (without its ct_ prefix
// stripped) to a Principal. It returns ErrInvalidCredentialFormat if the
// ct_ prefix is missing, and ErrUnauthenticated if the body is too short,
// unknown, revoked, or does not verify.
func (s *Service) Authenticate(ctx context.Context, presented string) (Principal, error) {
	presented = strings.TrimSpace(presented)
	if !strings.HasPrefix(presented, TokenPrefix) {
		return Principal{}, ErrInvalidCredentialFormat
	}
	body := strings.TrimPrefix(presented, TokenPrefix)
	if len(body) < lookupChars {
		return Principal{}, ErrUnauthenticated
	}
	lookup := body[:lookupChars]

	tok, err := s.store.GetTokenByLookup(ctx, lookup)
	if errors.Is(err, store.ErrNotFound) {
		return Principal{}, ErrUnauthenticated
	}
	if err != nil {
		return Principal{}, err
	}
	if tok.Revoked() {
		return Principal{}, ErrUnauthenticated
	}
	if !verifySecret(body, tok.SecretHash) {
		return Principal{}, ErrUnauthenticated
	}

	s.store.TouchTokenAsync(tok.ID)

	if tok.UserID == nil {
		return Principal{IsAdmin: true, TokenID: tok.ID}, nil
	}
	user, err := s.store.GetUser(ctx, *tok.UserID)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin, TokenID: tok.ID}, nil
}

// IssueToken creates a token for userID (nil for the admin-root token) and
// returns the plaintext secret, shown to the caller exactly once.
func (s *Service) IssueToken(ctx context.Context, userID *string, description string) (plaintext string, tok store.Token, err error) {
	plaintext, lookup, hash, err := GenerateSecret()
	if err != nil {
		return "", store.Token{}, err
	}
	tok, err = s.store.CreateToken(ctx, userID, lookup, hash, description)
	if err != nil {
		return "", store.Token{}, err
	}
	return plaintext, tok, nil
}

// RevokeToken marks a token revoked. It is idempotent.
func (s *Service) RevokeToken(ctx context.Context, tokenID string) error {
	return s.store.RevokeToken(ctx, tokenID)
}
