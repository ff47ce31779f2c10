package gateway

// Operation names an engine call. The set is closed: only the request types below implement Request.
type Operation string

const (
	LedgerCreate         Operation = "create"
	LedgerBalance        Operation = "balance"
	LedgerReceivePending Operation = "update"
	LedgerSend           Operation = "send"

	CoinCreateWallet Operation = "create_wallet"
	CoinGetBalance   Operation = "get_balance"
	CoinSendViaBox   Operation = "send_via_box"
	CoinCalculateFee Operation = "calculate_fee"
)

type Request interface {
	Operation() Operation
	isRequest()
}

type LedgerCreateRequest struct{}

type LedgerBalanceRequest struct {
	Mnemonics string `json:"mnemonics"`
	AddressID int    `json:"addressId"`
}

type LedgerReceiveRequest struct {
	Mnemonics string `json:"mnemonics"`
	AddressID int    `json:"addressId"`
}

// LedgerSendRequest carries Amount as an integer count of the token's minimal unit.
type LedgerSendRequest struct {
	Mnemonics string `json:"mnemonics"`
	AddressID int    `json:"addressId"`
	ToAddress string `json:"toAddress"`
	TokenID   string `json:"tokenId"`
	Amount    string `json:"amount"`
}

type CoinCreateRequest struct {
	Name string `json:"name"`
}

type CoinBalanceRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type CoinSendRequest struct {
	Name      string `json:"name"`
	Password  string `json:"password"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

type CoinFeeRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Amount   string `json:"amount"`
}

func (LedgerCreateRequest) Operation() Operation  { return LedgerCreate }
func (LedgerBalanceRequest) Operation() Operation { return LedgerBalance }
func (LedgerReceiveRequest) Operation() Operation { return LedgerReceivePending }
func (LedgerSendRequest) Operation() Operation    { return LedgerSend }
func (CoinCreateRequest) Operation() Operation    { return CoinCreateWallet }
func (CoinBalanceRequest) Operation() Operation   { return CoinGetBalance }
func (CoinSendRequest) Operation() Operation      { return CoinSendViaBox }
func (CoinFeeRequest) Operation() Operation       { return CoinCalculateFee }

func (LedgerCreateRequest) isRequest()  {}
func (LedgerBalanceRequest) isRequest() {}
func (LedgerReceiveRequest) isRequest() {}
func (LedgerSendRequest) isRequest()    {}
func (CoinCreateRequest) isRequest()    {}
func (CoinBalanceRequest) isRequest()   {}
func (CoinSendRequest) isRequest()      {}
func (CoinFeeRequest) isRequest()       {}
