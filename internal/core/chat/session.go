package chat

import (
	"crypto/rand"
	"math/big"
)

const (
	sessionIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	sessionIDLength   = 6
)

// NewSessionID returns a short random session identifier. Collision risk at
// this length is accepted; no uniqueness check is performed.
func NewSessionID() string {
	out := make([]byte, sessionIDLength)
	max := big.NewInt(int64(len(sessionIDAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			out[i] = sessionIDAlphabet[0]
			continue
		}
		out[i] = sessionIDAlphabet[n.Int64()]
	}
	return string(out)
}
