// Package credential hashes and verifies account passwords with bcrypt.
package credential

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Manager hashes passwords at a fixed bcrypt work factor. The produced hash
// embeds its salt and cost, so Verify needs nothing besides the hash.
type Manager struct {
	cost int
}

// NewManager returns a Manager using cost, clamped to bcrypt's accepted range.
// A zero cost selects bcrypt.DefaultCost.
func NewManager(cost int) *Manager {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Manager{cost: cost}
}

// Cost returns the configured work factor.
func (m *Manager) Cost() int { return m.cost }

// Hash returns a salted bcrypt hash of plaintext.
func (m *Manager) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), m.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. The comparison is constant
// time.
func (m *Manager) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
