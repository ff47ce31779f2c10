package engine

import (
	"fmt"

	"tipbridge/internal/models"
)

type Opener interface {
	Open(sealed []byte) ([]byte, error)
}

// Keyring opens a stored wallet's sealed secret into engine credentials.
type Keyring struct {
	box Opener
}

func NewKeyring(box Opener) *Keyring {
	return &Keyring{box: box}
}

func (k *Keyring) Credentials(w models.Wallet) (Credentials, error) {
	const op = "engine.Keyring.Credentials"
	secret, err := k.box.Open(w.Secret)
	if err != nil {
		return Credentials{}, fmt.Errorf("%s: wallet %s: %w", op, w.ID, err)
	}
	return Credentials{Name: w.ID.String(), Address: w.Address, Secret: string(secret)}, nil
}
