package models

import (
	"time"

	"tipbridge/internal/money"

	"github.com/google/uuid"
)

type TransactionType string

const (
	DepositTransaction  TransactionType = "deposit"
	WithdrawTransaction TransactionType = "withdraw"
	SendTransaction     TransactionType = "send"
	TipTransaction      TransactionType = "tip"
	FeeTransaction      TransactionType = "fee"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case DepositTransaction, WithdrawTransaction, SendTransaction, TipTransaction, FeeTransaction:
		return true
	}
	return false
}

// Spends reports whether the type debits the sender and needs a balance check.
func (t TransactionType) Spends() bool {
	switch t {
	case WithdrawTransaction, SendTransaction, TipTransaction:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending TransactionStatus = "pending"
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
)

func (s TransactionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

type Transaction struct {
	ID               uuid.UUID         `json:"id" db:"id"`
	Network          Network           `json:"network" db:"network"`
	Type             TransactionType   `json:"type" db:"type"`
	SenderWalletID   *uuid.UUID        `json:"senderWalletId,omitempty" db:"sender_wallet_id"`
	ReceiverWalletID *uuid.UUID        `json:"receiverWalletId,omitempty" db:"receiver_wallet_id"`
	ExternalAddress  *string           `json:"externalAddress,omitempty" db:"external_address"`
	Amount           money.Money       `json:"amount" db:"amount"`
	Status           TransactionStatus `json:"status" db:"status"`
	ExternalTxRef    *string           `json:"externalTxRef,omitempty" db:"external_tx_ref"`
	ErrorDetail      *string           `json:"errorDetail,omitempty" db:"error_detail"`
	CreatedAt        time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time         `json:"updatedAt" db:"updated_at"`
}

// TransferRequest is the command the chat front end hands to the core.
type TransferRequest struct {
	Sender   AccountRef      `json:"sender"`
	Receiver *AccountRef     `json:"receiver,omitempty"`
	Address  string          `json:"address,omitempty"`
	Amount   string          `json:"amount"`
	Type     TransactionType `json:"type"`
	Network  Network         `json:"network"`
}
