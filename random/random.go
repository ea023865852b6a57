package random

import (
	crand "crypto/rand"
	"math/big"
)

const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const upper = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// StringSecure returns a random alphanumeric string read from crypto/rand.
func StringSecure(length int) (string, error) {
	return pick(charset, length)
}

// Code is like StringSecure restricted to digits and upper case letters, for
// identifiers a human may have to read back.
func Code(length int) (string, error) {
	return pick(upper, length)
}

func pick(set string, length int) (string, error) {
	b := make([]byte, length)
	l := big.NewInt(int64(len(set)))
	for i := range b {
		num, err := crand.Int(crand.Reader, l)
		if err != nil {
			return "", err
		}
		b[i] = set[num.Int64()]
	}
	return string(b), nil
}
