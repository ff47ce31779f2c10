// Package secretbox seals wallet secret material before it reaches the store.
package secretbox

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var ErrOpen = errors.New("secretbox: cannot open sealed secret")

type Box struct {
	key [keySize]byte
}

// New takes a hex-encoded 32-byte key.
func New(hexKey string) (*Box, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("secretbox: decode key: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("secretbox: key must be %d bytes, got %d", keySize, len(raw))
	}
	b := &Box{}
	copy(b.key[:], raw)
	return b, nil
}

func (b *Box) Seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("secretbox: nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &b.key), nil
}

func (b *Box) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrOpen
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &b.key)
	if !ok {
		return nil, ErrOpen
	}
	return plain, nil
}
