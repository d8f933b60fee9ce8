// Package credential resolves API keys to their owning project, the
// ingest admission boundary's sole authentication mechanism.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Environment tags the key as issued for live or test traffic. It is
// informational only; it confers no additional authority.
type Environment string

const (
	EnvLive Environment = "live"
	EnvTest Environment = "test"
)

// keyPattern matches "sk_live_" or "sk_test_" followed by at least 24
// alphanumeric characters.
var keyPattern = regexp.MustCompile(`^sk_(live|test)_[a-zA-Z0-9]{24,}$`)

// ErrMalformed indicates the cleartext key does not match the expected format.
var ErrMalformed = errors.New("credential: malformed key")

// ErrNotFound indicates no credential matches the key's hash.
var ErrNotFound = errors.New("credential: not found")

// ErrInactive indicates the credential was found but is not active.
var ErrInactive = errors.New("credential: inactive")

// Credential is a resolved API credential.
type Credential struct {
	ID          uuid.UUID
	ProjectID   string
	Label       string
	KeyHash     string
	Environment Environment
	Active      bool
	CreatedAt   time.Time
	LastUsedAt  *time.Time
}

// Response is the JSON shape returned for a credential, omitting the hash.
type Response struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   string     `json:"project_id"`
	Label       string     `json:"label"`
	Environment string     `json:"environment"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// ToResponse converts a Credential to its public JSON DTO.
func (c Credential) ToResponse() Response {
	return Response{
		ID:          c.ID,
		ProjectID:   c.ProjectID,
		Label:       c.Label,
		Environment: string(c.Environment),
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
		LastUsedAt:  c.LastUsedAt,
	}
}

// hashKey computes the SHA-256 hash of the cleartext key's UTF-8 bytes.
func hashKey(cleartext string) string {
	h := sha256.Sum256([]byte(cleartext))
	return hex.EncodeToString(h[:])
}

// environmentOf derives the Environment tag from the key's prefix.
func environmentOf(cleartext string) Environment {
	if len(cleartext) >= 8 && cleartext[:8] == "sk_test_" {
		return EnvTest
	}
	return EnvLive
}

// generate creates a new cleartext key for the given environment, its
// hash, and the Environment tag.
func generate(env Environment) (cleartext, hash string, err error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generating key: %w", err)
	}

	prefix := "sk_live_"
	if env == EnvTest {
		prefix = "sk_test_"
	}
	cleartext = prefix + hex.EncodeToString(raw)[:24]
	hash = hashKey(cleartext)
	return cleartext, hash, nil
}
