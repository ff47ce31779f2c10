package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tipbridge/internal/balancecache"
	"tipbridge/internal/custom_err"
	"tipbridge/internal/engine"
	"tipbridge/internal/feepolicy"
	"tipbridge/internal/lockregistry"
	"tipbridge/internal/metrics"
	"tipbridge/internal/models"
	"tipbridge/internal/money"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	// OutcomeRetry means nothing moved and the request can be repeated as is.
	OutcomeRetry Outcome = "retry"
	// OutcomeCheckStatus means something may have been submitted; the caller should look before retrying.
	OutcomeCheckStatus Outcome = "check_status"
)

const aliasPrefix = "#"

type WalletFinder interface {
	GetByOwner(ctx context.Context, ownerID int64, network models.Network) (*models.Wallet, error)
	GetByUsername(ctx context.Context, username string, network models.Network) (*models.Wallet, error)
}

type TransactionRecorder interface {
	CreatePending(ctx context.Context, tx *models.Transaction) error
	Finalize(ctx context.Context, id uuid.UUID, status models.TransactionStatus, externalRef, errorDetail *string) error
}

type AliasResolver interface {
	GetByTitle(ctx context.Context, title string) (*models.Alias, error)
}

type BalanceChecker interface {
	Spendable(ctx context.Context, w models.Wallet) (balancecache.Result, error)
	Reconcile(ctx context.Context, w models.Wallet) (balancecache.Result, error)
	Invalidate(id uuid.UUID)
}

type TransferOptions struct {
	FeeSettleDelay   time.Duration
	FeeRetryDelay    time.Duration
	ReconcileTimeout time.Duration
	// ExplorerURLs maps a network to the prefix a transaction hash is appended to.
	ExplorerURLs map[models.Network]string
}

func DefaultTransferOptions() TransferOptions {
	return TransferOptions{
		FeeSettleDelay:   500 * time.Millisecond,
		FeeRetryDelay:    time.Second,
		ReconcileTimeout: 30 * time.Second,
	}
}

type FeeResult struct {
	Amount        money.Money              `json:"amount"`
	Address       string                   `json:"address"`
	Status        models.TransactionStatus `json:"status"`
	ExternalTxRef string                   `json:"externalTxRef,omitempty"`
	Error         string                   `json:"error,omitempty"`
}

type TransferResult struct {
	OK          bool                `json:"ok"`
	Outcome     Outcome             `json:"outcome"`
	Message     string              `json:"message"`
	Hint        string              `json:"hint,omitempty"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Fee         *FeeResult          `json:"fee,omitempty"`
	ExplorerURL string              `json:"explorerUrl,omitempty"`
}

type Transferer interface {
	Execute(ctx context.Context, req models.TransferRequest) (TransferResult, error)
}

var _ Transferer = (*TransferService)(nil)

// TransferService runs one transfer from validation to lock release.
type TransferService struct {
	wallets  WalletFinder
	txs      TransactionRecorder
	aliases  AliasResolver
	locker   lockregistry.Locker
	balances BalanceChecker
	creds    balancecache.CredentialsProvider
	engines  map[models.Network]engine.Engine
	fees     map[models.Network]feepolicy.Policy
	opts     TransferOptions
	log      *slog.Logger

	background sync.WaitGroup
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewTransferService(
	wallets WalletFinder,
	txs TransactionRecorder,
	aliases AliasResolver,
	locker lockregistry.Locker,
	balances BalanceChecker,
	creds balancecache.CredentialsProvider,
	engines map[models.Network]engine.Engine,
	fees map[models.Network]feepolicy.Policy,
	opts TransferOptions,
	log *slog.Logger,
) *TransferService {
	if opts.ReconcileTimeout <= 0 {
		opts.ReconcileTimeout = DefaultTransferOptions().ReconcileTimeout
	}
	return &TransferService{
		wallets:  wallets,
		txs:      txs,
		aliases:  aliases,
		locker:   locker,
		balances: balances,
		creds:    creds,
		engines:  engines,
		fees:     fees,
		opts:     opts,
		log:      log.With(slog.String("component", "transfer")),
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait blocks until background receiver reconciliations have finished.
func (s *TransferService) Wait() {
	s.background.Wait()
}

type transferPlan struct {
	network  models.Network
	engine   engine.Engine
	asset    engine.Asset
	policy   feepolicy.Policy
	txType   models.TransactionType
	amount   money.Money
	fee      money.Money
	sender   *models.Wallet
	receiver *models.Wallet
	to       string
	external *string
}

func nothingHappened(err error) TransferResult {
	return TransferResult{Outcome: OutcomeRetry, Message: userMessage(err)}
}

func userMessage(err error) string {
	var ve *custom_err.ValidationError
	var ie *custom_err.InsufficientFundsError
	switch {
	case errors.As(err, &ve):
		return ve.Reason
	case errors.As(err, &ie):
		return ie.Error()
	case errors.Is(err, custom_err.ErrLockContention):
		return custom_err.ErrLockContention.Error()
	case errors.Is(err, custom_err.ErrConnection):
		return custom_err.ErrConnection.Error()
	case errors.Is(err, custom_err.ErrEngineTimeout):
		return custom_err.ErrEngineTimeout.Error()
	}
	return "something went wrong, please retry"
}

// Execute validates the request, serializes it on the sender's lock, submits it to the engine and
// records the verdict. Fee transfers skip the lock and the balance check.
func (s *TransferService) Execute(ctx context.Context, req models.TransferRequest) (TransferResult, error) {
	const op = "service.Execute"
	log := s.log.With(slog.String("op", op), slog.String("type", string(req.Type)))

	plan, err := s.validate(ctx, req)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues(string(req.Type), "invalid").Inc()
		return nothingHappened(err), fmt.Errorf("%s: %w", op, err)
	}

	if plan.txType != models.FeeTransaction {
		lease, ok, err := s.locker.TryAcquire(ctx, plan.sender.OwnerID)
		if err != nil {
			return nothingHappened(err), fmt.Errorf("%s: lock: %w", op, err)
		}
		if !ok {
			metrics.LockContentionTotal.Inc()
			metrics.TransfersTotal.WithLabelValues(string(plan.txType), "locked").Inc()
			return nothingHappened(custom_err.ErrLockContention), fmt.Errorf("%s: account %d: %w", op, plan.sender.OwnerID, custom_err.ErrLockContention)
		}
		stopKeepAlive := s.keepLock(context.WithoutCancel(ctx), lease, log)
		defer func() {
			stopKeepAlive()
			if err := s.locker.Release(context.WithoutCancel(ctx), lease); err != nil {
				log.Error("failed to release account lock", slog.Int64("account", plan.sender.OwnerID), slog.String("error", err.Error()))
			}
		}()
	}

	creds, err := s.creds.Credentials(*plan.sender)
	if err != nil {
		return nothingHappened(err), fmt.Errorf("%s: %w", op, err)
	}

	if plan.txType.Spends() {
		if err := s.checkBalance(ctx, plan, creds); err != nil {
			if errors.Is(err, custom_err.ErrInsufficientFunds) {
				metrics.TransfersTotal.WithLabelValues(string(plan.txType), "insufficient").Inc()
			}
			return nothingHappened(err), fmt.Errorf("%s: %w", op, err)
		}
	}

	row := &models.Transaction{
		Network:         plan.network,
		Type:            plan.txType,
		SenderWalletID:  &plan.sender.ID,
		ExternalAddress: plan.external,
		Amount:          plan.amount,
	}
	if plan.receiver != nil {
		row.ReceiverWalletID = &plan.receiver.ID
	}
	if err := s.txs.CreatePending(ctx, row); err != nil {
		return nothingHappened(err), fmt.Errorf("%s: %w: %w", op, custom_err.ErrPersistence, err)
	}

	// Once submitted the engine verdict decides, not the caller's context.
	submitCtx := context.WithoutCancel(ctx)
	hash, sendErr := plan.engine.Send(submitCtx, creds, plan.to, plan.amount)

	result, finalErr := s.finalize(submitCtx, row, hash, sendErr)
	metrics.TransfersTotal.WithLabelValues(string(plan.txType), string(row.Status)).Inc()

	if row.Status != models.StatusSuccess {
		log.Warn("transfer failed", slog.String("tx", row.ID.String()), slog.String("error", sendErr.Error()))
		return result, fmt.Errorf("%s: %w", op, sendErr)
	}

	if prefix, ok := s.opts.ExplorerURLs[plan.network]; ok && prefix != "" {
		result.ExplorerURL = prefix + hash
	}

	if plan.fee.IsPositive() {
		result.Fee = s.submitFee(submitCtx, plan, creds)
	}

	s.balances.Invalidate(plan.sender.ID)
	if plan.receiver != nil {
		s.reconcileReceiver(*plan.receiver)
	}

	if finalErr != nil {
		result.Outcome = OutcomeCheckStatus
		result.Message = "transfer submitted but could not be recorded"
		return result, fmt.Errorf("%s: %w", op, finalErr)
	}
	log.Info("transfer completed", slog.String("tx", row.ID.String()), slog.String("hash", hash))
	return result, nil
}

func (s *TransferService) validate(ctx context.Context, req models.TransferRequest) (*transferPlan, error) {
	network, ok := models.ParseNetwork(string(req.Network))
	if !ok {
		return nil, custom_err.Invalid("unsupported network %q", req.Network)
	}
	eng, ok := s.engines[network]
	if !ok {
		return nil, custom_err.Invalid("network %s is not enabled", network)
	}

	switch req.Type {
	case models.WithdrawTransaction, models.SendTransaction, models.TipTransaction, models.FeeTransaction:
	default:
		return nil, custom_err.Invalid("unsupported transaction type %q", req.Type)
	}

	asset := eng.Asset()
	amount, err := money.Parse(req.Amount, asset.Decimals)
	if err != nil {
		return nil, custom_err.Invalid("invalid amount %q", req.Amount)
	}
	if !amount.IsPositive() {
		return nil, custom_err.Invalid("amount must be greater than zero")
	}

	if req.Sender.IsZero() {
		return nil, custom_err.Invalid("sender is required")
	}
	sender, err := s.findWallet(ctx, req.Sender, network)
	if err != nil {
		if errors.Is(err, custom_err.ErrNotFound) {
			return nil, custom_err.Invalid("sender has no %s wallet", network)
		}
		return nil, err
	}
	if sender.Address == "" {
		return nil, custom_err.Invalid("sender wallet has no address")
	}

	plan := &transferPlan{
		network: network,
		engine:  eng,
		asset:   asset,
		policy:  s.fees[network],
		txType:  req.Type,
		amount:  amount,
		sender:  sender,
	}

	hasReceiver := req.Receiver != nil && !req.Receiver.IsZero()
	address := strings.TrimSpace(req.Address)

	switch {
	case hasReceiver && address != "":
		return nil, custom_err.Invalid("give either a receiver or an address, not both")
	case hasReceiver:
		if req.Type == models.WithdrawTransaction || req.Type == models.FeeTransaction {
			return nil, custom_err.Invalid("%s needs an external address", req.Type)
		}
		receiver, err := s.findWallet(ctx, *req.Receiver, network)
		if err != nil {
			if errors.Is(err, custom_err.ErrNotFound) {
				return nil, custom_err.Invalid("recipient has no account yet")
			}
			return nil, err
		}
		if receiver.ID == sender.ID {
			return nil, custom_err.Invalid("cannot send to yourself")
		}
		plan.receiver = receiver
		plan.to = receiver.Address
	case address != "":
		resolved, err := s.resolveAddress(ctx, address, network)
		if err != nil {
			return nil, err
		}
		if err := eng.ValidateAddress(resolved); err != nil {
			return nil, err
		}
		plan.to = resolved
		plan.external = &resolved
	case req.Type == models.FeeTransaction && plan.policy.Address() != "":
		collector := plan.policy.Address()
		plan.to = collector
		plan.external = &collector
	default:
		return nil, custom_err.Invalid("receiver or address is required")
	}

	plan.fee = plan.policy.Fee(plan.txType, amount)
	return plan, nil
}

func (s *TransferService) findWallet(ctx context.Context, ref models.AccountRef, network models.Network) (*models.Wallet, error) {
	if ref.ID != 0 {
		return s.wallets.GetByOwner(ctx, ref.ID, network)
	}
	return s.wallets.GetByUsername(ctx, strings.TrimPrefix(ref.Username, "@"), network)
}

// resolveAddress turns "#title" into the aliased address; anything else is returned as is.
func (s *TransferService) resolveAddress(ctx context.Context, address string, network models.Network) (string, error) {
	if !strings.HasPrefix(address, aliasPrefix) {
		return address, nil
	}
	if s.aliases == nil {
		return "", custom_err.Invalid("aliases are not available")
	}
	title := strings.TrimPrefix(address, aliasPrefix)
	alias, err := s.aliases.GetByTitle(ctx, title)
	if err != nil {
		if errors.Is(err, custom_err.ErrNotFound) {
			return "", custom_err.Invalid("unknown alias %q", title)
		}
		return "", err
	}
	if alias.Network != network {
		return "", custom_err.Invalid("alias %q belongs to %s", title, alias.Network)
	}
	return alias.Address, nil
}

// keepLock extends the lease every third of the TTL until the returned stop func is called, so a send
// stuck in engine retries keeps its account locked. Stop waits for the loop to exit.
func (s *TransferService) keepLock(ctx context.Context, lease lockregistry.Lease, log *slog.Logger) func() {
	interval := s.locker.TTL() / 3
	if interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ok, err := s.locker.Extend(ctx, lease)
				if err != nil {
					log.Warn("failed to extend account lock", slog.Int64("account", lease.AccountID), slog.String("error", err.Error()))
					continue
				}
				if !ok {
					log.Error("account lock lost while a transfer was in flight", slog.Int64("account", lease.AccountID))
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

func (s *TransferService) checkBalance(ctx context.Context, plan *transferPlan, creds engine.Credentials) error {
	res, err := s.balances.Spendable(ctx, *plan.sender)
	if err != nil {
		return err
	}

	required, err := plan.amount.CheckedAdd(plan.fee)
	if err != nil {
		return custom_err.Invalid("amount is too large")
	}
	if est, ok := plan.engine.(engine.NetworkFeeEstimator); ok {
		networkFee, err := est.NetworkFee(ctx, creds, plan.amount)
		if err != nil {
			return err
		}
		if required, err = required.CheckedAdd(networkFee); err != nil {
			return custom_err.Invalid("amount is too large")
		}
	}

	if res.Spendable.LessThan(required) {
		return &custom_err.InsufficientFundsError{
			Required:  required.Display(),
			Available: res.Spendable.Display(),
			Symbol:    plan.asset.Symbol,
		}
	}
	return nil
}

// finalize moves the pending row to its terminal status and builds the caller-facing result.
func (s *TransferService) finalize(ctx context.Context, row *models.Transaction, hash string, sendErr error) (TransferResult, error) {
	var (
		ref    *string
		detail *string
		res    TransferResult
		ee     *custom_err.EngineError
	)

	switch {
	case sendErr == nil:
		row.Status = models.StatusSuccess
		ref = &hash
		res = TransferResult{OK: true, Outcome: OutcomeCompleted, Message: "transaction sent successfully"}
	case errors.Is(sendErr, custom_err.ErrConnection):
		row.Status = models.StatusFailed
		msg := custom_err.ErrConnection.Error()
		detail = &msg
		res = TransferResult{Outcome: OutcomeRetry, Message: msg}
	case errors.As(sendErr, &ee):
		row.Status = models.StatusFailed
		detail = &ee.Message
		res = TransferResult{Outcome: OutcomeRetry, Message: ee.Message, Hint: engineHint(ee.Message)}
	case errors.Is(sendErr, custom_err.ErrEngineTimeout):
		row.Status = models.StatusFailed
		msg := sendErr.Error()
		detail = &msg
		res = TransferResult{Outcome: OutcomeCheckStatus, Message: custom_err.ErrEngineTimeout.Error()}
	default:
		row.Status = models.StatusFailed
		msg := sendErr.Error()
		detail = &msg
		res = TransferResult{Outcome: OutcomeCheckStatus, Message: "unexpected engine response, check the transaction status"}
	}

	row.ExternalTxRef = ref
	row.ErrorDetail = detail
	res.Transaction = row

	if err := s.txs.Finalize(ctx, row.ID, row.Status, ref, detail); err != nil {
		s.log.Error("failed to record transaction outcome",
			slog.String("tx", row.ID.String()), slog.String("status", string(row.Status)), slog.String("error", err.Error()))
		return res, fmt.Errorf("%w: %w", custom_err.ErrPersistence, err)
	}
	return res, nil
}

// submitFee sends the protocol fee for a completed transfer. Failures are logged and reported,
// never returned.
func (s *TransferService) submitFee(ctx context.Context, plan *transferPlan, creds engine.Credentials) *FeeResult {
	const op = "service.submitFee"
	collector := plan.policy.Address()
	out := &FeeResult{Amount: plan.fee, Address: collector, Status: models.StatusFailed}
	log := s.log.With(slog.String("op", op), slog.String("wallet", plan.sender.ID.String()))

	fail := func(err error) *FeeResult {
		metrics.FeeFailuresTotal.Inc()
		out.Error = err.Error()
		log.Warn("fee transfer failed", slog.String("amount", plan.fee.Display()), slog.String("error", err.Error()))
		return out
	}

	if collector == "" {
		return fail(errors.New("fee collector address is not configured"))
	}

	row := &models.Transaction{
		Network:         plan.network,
		Type:            models.FeeTransaction,
		SenderWalletID:  &plan.sender.ID,
		ExternalAddress: &collector,
		Amount:          plan.fee,
	}
	if err := s.txs.CreatePending(ctx, row); err != nil {
		return fail(err)
	}

	// lets the engine settle the primary block before the next send from the same account
	_ = s.sleep(ctx, s.opts.FeeSettleDelay)

	hash, err := plan.engine.Send(ctx, creds, collector, plan.fee)
	if err != nil && isPoWRace(err) {
		log.Info("retrying fee transfer after proof-of-work race")
		_ = s.sleep(ctx, s.opts.FeeRetryDelay)
		hash, err = plan.engine.Send(ctx, creds, collector, plan.fee)
	}

	_, finalErr := s.finalize(ctx, row, hash, err)
	if err != nil {
		return fail(err)
	}
	out.Status = models.StatusSuccess
	out.ExternalTxRef = hash
	if finalErr != nil {
		out.Error = finalErr.Error()
	}
	return out
}

func (s *TransferService) reconcileReceiver(w models.Wallet) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.ReconcileTimeout)
		defer cancel()
		if _, err := s.balances.Reconcile(ctx, w); err != nil {
			s.log.Warn("receiver reconcile failed", slog.String("wallet", w.ID.String()), slog.String("error", err.Error()))
		}
	}()
}

func isPoWRace(err error) bool {
	var ee *custom_err.EngineError
	if !errors.As(err, &ee) {
		return false
	}
	return strings.Contains(ee.Message, "calc PoW twice") || strings.Contains(ee.Message, "verify prevBlock failed")
}

func engineHint(message string) string {
	switch {
	case strings.Contains(message, "sendBlock.Height must be larger than 1"):
		return "wallet balance is too low for this transfer"
	case strings.Contains(message, "no account"):
		return "recipient address has no account on the network yet"
	}
	return ""
}
