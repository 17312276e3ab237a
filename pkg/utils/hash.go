package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// SHA256Writer hashes everything written through it.
type SHA256Writer struct {
	h hash.Hash
}

func NewSHA256Writer() *SHA256Writer {
	return &SHA256Writer{h: sha256.New()}
}

func (w *SHA256Writer) Write(p []byte) (int, error) { return w.h.Write(p) }

// Hex returns the lowercase hex digest of the bytes written so far.
func (w *SHA256Writer) Hex() string {
	return hex.EncodeToString(w.h.Sum(nil))
}
