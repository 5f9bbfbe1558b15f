package ledger

import (
	"fmt"
	"strings"
)

// =============================================================================
// POOL KIND - Closed set of pool families
// =============================================================================

// PoolKind identifies a family of pools. The numeric values are the
// persisted payment_kind codes and must not be renumbered.
type PoolKind int

const (
	KindFreeCash    PoolKind = 0
	KindSavedCash   PoolKind = 1
	KindEnvelope    PoolKind = 2
	KindBankAccount PoolKind = 3
)

// Kinds lists every pool kind in code order.
var Kinds = []PoolKind{KindFreeCash, KindSavedCash, KindEnvelope, KindBankAccount}

// Text tokens used by the transfers table and the HTTP adapter.
const (
	TokenFreeCash    = "freecash"
	TokenSavedCash   = "savedcash"
	TokenEnvelope    = "envelope"
	TokenBankAccount = "bank"
)

// Valid reports whether k is one of the four known kinds.
func (k PoolKind) Valid() bool {
	return k >= KindFreeCash && k <= KindBankAccount
}

// NeedsID reports whether pools of this kind are addressed by id.
func (k PoolKind) NeedsID() bool {
	return k == KindEnvelope || k == KindBankAccount
}

// Code returns the persisted integer code.
func (k PoolKind) Code() int { return int(k) }

// Token returns the persisted text token.
func (k PoolKind) Token() string {
	switch k {
	case KindFreeCash:
		return TokenFreeCash
	case KindSavedCash:
		return TokenSavedCash
	case KindEnvelope:
		return TokenEnvelope
	case KindBankAccount:
		return TokenBankAccount
	}
	return ""
}

func (k PoolKind) String() string {
	if t := k.Token(); t != "" {
		return t
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindFromCode decodes a payment_kind integer.
func KindFromCode(code int) (PoolKind, error) {
	k := PoolKind(code)
	if !k.Valid() {
		return 0, fmt.Errorf("%w: code %d", ErrUnknownPoolKind, code)
	}
	return k, nil
}

// ParseKindToken decodes a text token. Matching ignores case and
// surrounding whitespace.
func ParseKindToken(token string) (PoolKind, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case TokenFreeCash:
		return KindFreeCash, nil
	case TokenSavedCash:
		return KindSavedCash, nil
	case TokenEnvelope:
		return KindEnvelope, nil
	case TokenBankAccount:
		return KindBankAccount, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPoolKind, token)
}

// =============================================================================
// POOL REFERENCE - Kind plus optional id
// =============================================================================

// PoolRef names exactly one pool of a user. ID is zero for FreeCash and
// SavedCash and must be positive for Envelope and BankAccount.
type PoolRef struct {
	Kind PoolKind
	ID   int64
}

func FreeCash() PoolRef { return PoolRef{Kind: KindFreeCash} }
func SavedCash() PoolRef { return PoolRef{Kind: KindSavedCash} }
func Envelope(id int64) PoolRef { return PoolRef{Kind: KindEnvelope, ID: id} }
func BankAccount(id int64) PoolRef { return PoolRef{Kind: KindBankAccount, ID: id} }

// NewPoolRef builds a reference from a kind and an optional id. The id is
// dropped for kinds that are not addressed by id.
func NewPoolRef(kind PoolKind, id *int64) (PoolRef, error) {
	ref := PoolRef{Kind: kind}
	if id != nil {
		ref.ID = *id
	}
	return ref.Normalize()
}

// Normalize validates the reference and clears a stray id on FreeCash or
// SavedCash.
func (r PoolRef) Normalize() (PoolRef, error) {
	if !r.Kind.Valid() {
		return PoolRef{}, fmt.Errorf("%w: %d", ErrUnknownPoolKind, int(r.Kind))
	}
	if !r.Kind.NeedsID() {
		return PoolRef{Kind: r.Kind}, nil
	}
	if r.ID <= 0 {
		return PoolRef{}, fmt.Errorf("%w: %s requires an id", ErrMissingPoolReference, r.Kind)
	}
	return r, nil
}

// RefID returns the id as a nullable value for storage.
func (r PoolRef) RefID() *int64 {
	if !r.Kind.NeedsID() {
		return nil
	}
	id := r.ID
	return &id
}

// SamePool reports whether both references resolve to the same pool.
func (r PoolRef) SamePool(other PoolRef) bool {
	if r.Kind != other.Kind {
		return false
	}
	return !r.Kind.NeedsID() || r.ID == other.ID
}

func (r PoolRef) String() string {
	if r.Kind.NeedsID() {
		return fmt.Sprintf("%s(%d)", r.Kind, r.ID)
	}
	return r.Kind.String()
}
