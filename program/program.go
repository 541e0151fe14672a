// Package program exposes the journal operations as signed instructions.
//
// A caller builds an [Instruction], signs it with its owner key and submits
// the resulting [Transaction] to [Program.Process]. The signature is the only
// proof of identity: the signer becomes the owner every operation runs as.
package program

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jacentio/quill/journal"
	"github.com/jacentio/quill/keys"
)

// Instruction methods.
const (
	MethodInitialize = "initialize_journal_count"
	MethodCreate     = "create_journal_entry"
	MethodUpdate     = "update_journal_entry"
	MethodDelete     = "delete_journal_entry"
	MethodFund       = "fund"
)

var (
	// ErrUnknownInstruction is returned for an unrecognized method.
	ErrUnknownInstruction = errors.New("program: unknown instruction")

	// ErrBadSignature is returned when the signature does not match the signer.
	// It wraps journal.ErrUnauthorized.
	ErrBadSignature = fmt.Errorf("program: signature verification failed: %w", journal.ErrUnauthorized)
)

// CodeUnknownInstruction is reported for ErrUnknownInstruction.
const CodeUnknownInstruction uint32 = 101

// Instruction is one operation request.
//
// Mutating instructions name the state they were signed against: Count is
// the owner's counter value for a create, Version the entry version for an
// update or delete. Process rejects the instruction once that state has
// moved on, so a signed transaction takes effect at most once.
type Instruction struct {
	Method  string `json:"method"`
	ID      uint64 `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Amount  int64  `json:"amount,omitempty"`
	Count   uint64 `json:"count,omitempty"`
	Version uint64 `json:"version,omitempty"`
}

// Transaction is an instruction signed by its owner.
type Transaction struct {
	Signer      journal.Owner `json:"signer"`
	Instruction Instruction   `json:"instruction"`
	Signature   []byte        `json:"signature"`
}

// Message returns the bytes the signature covers.
func (tx *Transaction) Message() ([]byte, error) {
	return json.Marshal(struct {
		Signer      journal.Owner `json:"signer"`
		Instruction Instruction   `json:"instruction"`
	}{tx.Signer, tx.Instruction})
}

// Sign builds a transaction for ins signed by k.
func Sign(k *keys.Keypair, ins Instruction) (*Transaction, error) {
	tx := &Transaction{Signer: k.Owner(), Instruction: ins}
	msg, err := tx.Message()
	if err != nil {
		return nil, err
	}
	tx.Signature = k.Sign(msg)
	return tx, nil
}

// Receipt reports the outcome of a processed transaction.
type Receipt struct {
	TxID    string                   `json:"tx_id"`
	Method  string                   `json:"method"`
	Code    uint32                   `json:"code"`
	Message string                   `json:"message"`
	Entry   *journal.Entry           `json:"entry,omitempty"`
	Counter *journal.SequenceCounter `json:"counter,omitempty"`
	Balance *int64                   `json:"balance,omitempty"`
}

// Code maps err to the code reported in receipts.
func Code(err error) uint32 {
	if errors.Is(err, ErrUnknownInstruction) {
		return CodeUnknownInstruction
	}
	return journal.Code(err)
}

// Program verifies transactions and dispatches them to the journal service.
type Program struct {
	svc    *journal.Service
	logger *slog.Logger
}

// New creates a new Program.
func New(svc *journal.Service, logger *slog.Logger) *Program {
	if logger == nil {
		logger = slog.Default()
	}
	return &Program{
		svc:    svc,
		logger: logger,
	}
}

// Process verifies tx and executes its instruction as tx.Signer. The
// returned receipt is never nil; on failure it carries the error code and
// the error is returned as well.
func (p *Program) Process(ctx context.Context, tx *Transaction) (*Receipt, error) {
	if tx == nil {
		return &Receipt{
			TxID:    newTxID(),
			Code:    Code(ErrBadSignature),
			Message: codeMessage(Code(ErrBadSignature)),
		}, ErrBadSignature
	}
	r := &Receipt{
		TxID:   newTxID(),
		Method: tx.Instruction.Method,
	}

	err := p.verify(tx)
	if err == nil {
		err = p.dispatch(ctx, tx.Signer, tx.Instruction, r)
	}

	r.Code = Code(err)
	r.Message = codeMessage(r.Code)
	if err != nil {
		p.logger.Warn("transaction failed",
			"txID", r.TxID,
			"method", r.Method,
			"signer", tx.Signer.String(),
			"code", r.Code,
			"error", err,
		)
		return r, err
	}
	return r, nil
}

func (p *Program) verify(tx *Transaction) error {
	msg, err := tx.Message()
	if err != nil {
		return err
	}
	if !keys.Verify(tx.Signer, msg, tx.Signature) {
		return ErrBadSignature
	}
	return nil
}

func (p *Program) dispatch(ctx context.Context, owner journal.Owner, ins Instruction, r *Receipt) error {
	switch ins.Method {
	case MethodInitialize:
		c, err := p.svc.InitCounter(ctx, owner)
		r.Counter = c
		return err

	case MethodCreate:
		e, err := p.svc.CreateAfter(ctx, owner, ins.Count, ins.Title, ins.Content)
		r.Entry = e
		return err

	case MethodUpdate:
		e, err := p.svc.UpdateAt(ctx, owner, ins.ID, ins.Version, ins.Title, ins.Content)
		r.Entry = e
		return err

	case MethodDelete:
		return p.svc.DeleteAt(ctx, owner, ins.ID, ins.Version, ins.Title)

	case MethodFund:
		b, err := p.svc.Fund(ctx, owner, ins.Amount)
		if err == nil {
			r.Balance = &b
		}
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownInstruction, ins.Method)
}

func codeMessage(code uint32) string {
	if code == CodeUnknownInstruction {
		return "Fallback functions are not supported"
	}
	return journal.Message(code)
}

func newTxID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
