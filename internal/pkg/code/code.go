package code

import (
	"crypto/rand"
	"math/big"
)

// Alphabet is the 62-character set verification codes are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// New generates an n-character code drawn uniformly from Alphabet using
// crypto/rand. Collisions across live codes are accepted as negligible and
// not checked.
func New(n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(Alphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = Alphabet[idx.Int64()]
	}
	return string(b), nil
}
