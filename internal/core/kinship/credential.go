package kinship

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/agenthands/kindred/internal/apperror"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes and newer versions reject it.
	maxPasswordBytes = 72
)

// CheckCredential enforces the temporary password policy: at least eight
// characters containing both an ASCII letter and an ASCII digit.
func CheckCredential(password string) error {
	var letter, digit bool
	n := 0
	for _, r := range password {
		n++
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
			letter = true
		case '0' <= r && r <= '9':
			digit = true
		}
	}
	if n < minPasswordLength || len(password) > maxPasswordBytes || !letter || !digit {
		return apperror.WeakPassword("Password must be 8-72 characters and include letters and numbers")
	}
	return nil
}

type Hasher interface {
	Hash(password string) (string, error)
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
