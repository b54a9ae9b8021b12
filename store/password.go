package store

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches bcryptjs hashes already present in users.json files.
const DefaultBcryptCost = 10

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost int

	// dummies are compared against when the user does not exist, so a miss
	// costs the same as a wrong password. Keyed by bcrypt cost.
	mu      sync.Mutex
	dummies map[int][]byte
}

// NewPasswordHasher creates a PasswordHasher. A cost outside bcrypt's bounds falls back to the default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	h := &PasswordHasher{cost: cost, dummies: make(map[int][]byte)}
	h.dummy(cost)
	return h
}

// Hash generates a salted bcrypt hash of the given password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify checks password against hash in constant time.
func (h *PasswordHasher) Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// burn spends one comparison's worth of time without a real hash. The dummy
// uses the cost of like, a stored hash, so imported hashes with a different
// cost than the configured one are matched too.
func (h *PasswordHasher) burn(password, like string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy(h.costOf(like)), []byte(password))
}

func (h *PasswordHasher) costOf(hash string) int {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return h.cost
	}
	return cost
}

func (h *PasswordHasher) dummy(cost int) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.dummies[cost]; ok {
		return d
	}
	d, err := bcrypt.GenerateFromPassword([]byte("todoboard-dummy-password"), cost)
	if err != nil {
		return nil
	}
	h.dummies[cost] = d
	return d
}
