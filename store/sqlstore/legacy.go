package sqlstore

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/warp/pocket-ledger/ledger"
)

// poolColumns is the raw pool encoding of an expenses/incomes row.
type poolColumns struct {
	kind          sql.NullInt64
	refID         sql.NullInt64
	bankAccountID sql.NullInt64
	accountText   sql.NullString
}

// decodeEntryPool turns the stored columns into a PoolRef. This is the only
// place legacy encodings are understood.
//
// Order: payment_kind when present; otherwise bank_account_id means a bank
// account; otherwise the free-text account label if it parses; otherwise
// free cash.
func decodeEntryPool(c poolColumns) (ledger.PoolRef, error) {
	if c.kind.Valid {
		kind, err := ledger.KindFromCode(int(c.kind.Int64))
		if err != nil {
			return ledger.PoolRef{}, err
		}
		var id *int64
		if c.refID.Valid {
			id = &c.refID.Int64
		}
		return ledger.NewPoolRef(kind, id)
	}
	if c.bankAccountID.Valid && c.bankAccountID.Int64 > 0 {
		return ledger.BankAccount(c.bankAccountID.Int64), nil
	}
	if c.accountText.Valid {
		if ref, ok := ParseAccountText(c.accountText.String); ok {
			return ref, nil
		}
	}
	return ledger.FreeCash(), nil
}

// encodeEntryPool returns the payment_kind and payment_ref_id values, plus
// bank_account_id kept in step for readers of the old column.
func encodeEntryPool(ref ledger.PoolRef) (kind int, refID, bankAccountID *int64) {
	refID = ref.RefID()
	if ref.Kind == ledger.KindBankAccount {
		bankAccountID = refID
	}
	return ref.Kind.Code(), refID, bankAccountID
}

func decodeTransferPool(token string, refID sql.NullInt64) (ledger.PoolRef, error) {
	kind, err := ledger.ParseKindToken(token)
	if err != nil {
		return ledger.PoolRef{}, err
	}
	var id *int64
	if refID.Valid {
		id = &refID.Int64
	}
	ref, err := ledger.NewPoolRef(kind, id)
	if err != nil {
		return ledger.PoolRef{}, fmt.Errorf("decode transfer pool %q: %w", token, err)
	}
	return ref, nil
}

var (
	bankTextRe     = regexp.MustCompile(`^(?:bank|account|bank account)\b\D*(\d+)`)
	envelopeTextRe = regexp.MustCompile(`^envelope\b\D*(\d+)`)
)

// ParseAccountText decodes the free-text account labels written by old
// clients, such as "Bank: 7", "Bank account #7", "Envelope: 3",
// "Saved cash", "Savings" or "Cash". It returns false for anything else.
func ParseAccountText(text string) (ledger.PoolRef, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return ledger.PoolRef{}, false
	}

	if m := bankTextRe.FindStringSubmatch(s); m != nil {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil && id > 0 {
			return ledger.BankAccount(id), true
		}
		return ledger.PoolRef{}, false
	}
	if m := envelopeTextRe.FindStringSubmatch(s); m != nil {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil && id > 0 {
			return ledger.Envelope(id), true
		}
		return ledger.PoolRef{}, false
	}

	switch {
	case strings.HasPrefix(s, "saved"), strings.HasPrefix(s, "savings"):
		return ledger.SavedCash(), true
	case strings.HasPrefix(s, "cash"), strings.HasPrefix(s, "free"):
		return ledger.FreeCash(), true
	}
	return ledger.PoolRef{}, false
}
