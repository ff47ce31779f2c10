package models

import "strings"

type Network string

const (
	NetworkLedger Network = "LEDGER"
	NetworkCoin   Network = "COIN"
)

func (n Network) IsValid() bool {
	switch n {
	case NetworkLedger, NetworkCoin:
		return true
	}
	return false
}

// ParseNetwork accepts the canonical names and the chat aliases users type.
func ParseNetwork(s string) (Network, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ledger", "vite":
		return NetworkLedger, true
	case "coin", "epic":
		return NetworkCoin, true
	}
	return "", false
}
