package donate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/chain"
	"github.com/Dikshant-Neupane/sahayog-fund/pkg/fund"
	"github.com/gagliardetto/solana-go"
	log "github.com/inconshreveable/log15"
	"github.com/shopspring/decimal"
)

// State is a step of the donation flow.
type State int

const (
	Idle State = iota
	Validating
	CheckingBalance
	Building
	Signing
	Confirming
	Done
	Failed
)

var stateNames = [...]string{
	Idle:            "idle",
	Validating:      "validating",
	CheckingBalance: "checking_balance",
	Building:        "building",
	Signing:         "signing",
	Confirming:      "confirming",
	Done:            "done",
	Failed:          "error",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Chain is the Solana node the flow talks to.
type Chain interface {
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
	LatestBlockhash(ctx context.Context) (chain.Blockhash, error)
	Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error
}

// Wallet signs transactions on behalf of the donor.
type Wallet interface {
	PublicKey() solana.PublicKey
	// SignTransaction adds the wallet's signature to tx. It returns
	// ErrUserRejected when the owner declines.
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// Recorder stores the receipt of a confirmed donation.
type Recorder interface {
	Record(ctx context.Context, r fund.Receipt) error
}

// Limits bound a single donation.
type Limits struct {
	Min        decimal.Decimal // SOL
	Max        decimal.Decimal // SOL
	FeeBuffer  uint64          // lamports kept aside for the transaction fee
	MaxMessage int             // characters
}

var DefaultLimits = Limits{
	Min:        decimal.RequireFromString("0.001"),
	Max:        decimal.NewFromInt(500),
	FeeBuffer:  5000,
	MaxMessage: fund.MaxMessageChars,
}

// Request describes one donation.
type Request struct {
	CampaignID string
	Recipient  solana.PublicKey
	Amount     string // SOL, as entered by the donor
	Message    string
	DonorName  string
	Anonymous  bool
}

// Result of a confirmed donation. ReceiptErr is set when the receipt
// could not be recorded, the donation itself still succeeded.
type Result struct {
	Signature  solana.Signature
	Lamports   uint64
	ReceiptErr error
}

type Option func(*Flow)

func WithRecorder(r Recorder) Option {
	return func(f *Flow) { f.recorder = r }
}

// WithProgram makes the flow call the donation program's donate
// method instead of a plain system transfer.
func WithProgram(programID solana.PublicKey) Option {
	return func(f *Flow) { f.programID = &programID }
}

func WithLimits(l Limits) Option {
	return func(f *Flow) { f.limits = l }
}

// WithObserver registers a callback invoked on every state change.
func WithObserver(fn func(State)) Option {
	return func(f *Flow) { f.observer = fn }
}

// Flow runs donations one at a time:
// idle -> validating -> checking_balance -> building -> signing ->
// confirming -> done, with an exit to error and back to idle from
// any step. Nothing is retried.
//
// A donation whose confirmation timed out may have landed anyway,
// starting it again can transfer twice.
type Flow struct {
	chain     Chain
	wallet    Wallet
	recorder  Recorder
	programID *solana.PublicKey
	limits    Limits
	observer  func(State)

	mu      sync.Mutex
	state   State
	running bool
}

func NewFlow(c Chain, w Wallet, opts ...Option) *Flow {
	f := &Flow{
		chain:  c,
		wallet: w,
		limits: DefaultLimits,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// State returns the current state of the flow.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) set(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()

	if f.observer != nil {
		f.observer(s)
	}
}

func (f *Flow) fail(kind Kind, at State, err error) *Error {
	e := &Error{Kind: kind, State: at, Err: err}
	log.Warn("donation failed", "state", at, "kind", kind, "err", err)
	f.set(Failed)
	f.set(Idle)
	return e
}

// ValidateAmount checks the amount against the limits and returns it
// in lamports.
func ValidateAmount(amount string, l Limits) (uint64, error) {
	sol, err := chain.ParseSOL(amount)
	if err != nil {
		return 0, err
	}

	if !sol.IsPositive() {
		return 0, errors.New("amount must be greater than zero")
	}

	if sol.LessThan(l.Min) {
		return 0, fmt.Errorf("minimum donation is %s SOL", l.Min)
	}

	if sol.GreaterThan(l.Max) {
		return 0, fmt.Errorf("maximum donation is %s SOL", l.Max)
	}

	return chain.ToLamports(sol)
}

func (f *Flow) validate(req *Request) (uint64, error) {
	lamports, err := ValidateAmount(req.Amount, f.limits)
	if err != nil {
		return 0, err
	}

	if n := utf8.RuneCountInString(req.Message); n > f.limits.MaxMessage {
		return 0, fmt.Errorf("message is %d characters, the limit is %d", n, f.limits.MaxMessage)
	}

	if req.Recipient.IsZero() {
		return 0, errors.New("recipient wallet is required")
	}
	return lamports, nil
}

func (f *Flow) instruction(req *Request, lamports uint64) (solana.Instruction, error) {
	payer := f.wallet.PublicKey()
	if f.programID != nil {
		return chain.DonateInstruction(*f.programID, payer, req.Recipient, lamports, req.Message)
	}
	return chain.TransferInstruction(payer, req.Recipient, lamports), nil
}

// Donate runs the donation to completion. The returned error is
// always an *Error.
func (f *Flow) Donate(ctx context.Context, req Request) (*Result, error) {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil, ErrInProgress
	}
	f.running = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
	}()

	f.set(Validating)
	lamports, err := f.validate(&req)
	if err != nil {
		return nil, f.fail(KindInvalid, Validating, err)
	}

	f.set(CheckingBalance)
	payer := f.wallet.PublicKey()
	balance, err := f.chain.Balance(ctx, payer)
	if err != nil {
		return nil, f.fail(Classify(err), CheckingBalance, err)
	}

	needed := lamports + f.limits.FeeBuffer
	if balance < needed {
		e := f.fail(KindInsufficientFunds, CheckingBalance,
			fmt.Errorf("balance %s SOL, need %s SOL", chain.FormatSOL(balance), chain.FormatSOL(needed)))
		e.Shortfall = needed - balance
		return nil, e
	}

	f.set(Building)
	ix, err := f.instruction(&req, lamports)
	if err != nil {
		return nil, f.fail(KindUnknown, Building, err)
	}

	bh, err := f.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, f.fail(Classify(err), Building, err)
	}

	tx, err := chain.NewTransaction(ix, payer, bh.Hash)
	if err != nil {
		return nil, f.fail(KindUnknown, Building, err)
	}

	f.set(Signing)
	err = f.wallet.SignTransaction(ctx, tx)
	if err != nil {
		return nil, f.fail(Classify(err), Signing, err)
	}

	f.set(Confirming)
	sig, err := f.chain.Send(ctx, tx)
	if err != nil {
		return nil, f.fail(Classify(err), Confirming, err)
	}

	err = f.chain.Confirm(ctx, sig, bh.LastValidBlockHeight)
	if err != nil {
		return nil, f.fail(Classify(err), Confirming, err)
	}

	res := &Result{Signature: sig, Lamports: lamports}
	if f.recorder != nil && req.CampaignID != "" {
		res.ReceiptErr = f.recorder.Record(ctx, fund.Receipt{
			CampaignID:  req.CampaignID,
			DonorWallet: payer.String(),
			DonorName:   req.DonorName,
			Message:     req.Message,
			Lamports:    lamports,
			TxSignature: sig.String(),
			Anonymous:   req.Anonymous,
		})
		if res.ReceiptErr != nil {
			log.Error("record donation receipt error", "sig", sig, "err", res.ReceiptErr)
		}
	}

	log.Info("donation confirmed", "sig", sig, "lamports", lamports, "to", req.Recipient)
	f.set(Done)
	return res, nil
}
