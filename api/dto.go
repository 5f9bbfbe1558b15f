/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes of the ledger HTTP API, kept apart from the ledger types so
  the wire format can stay stable while the engine evolves.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

WIRE FORMAT:
  Amounts are decimal strings ("12.50"); numbers are accepted on input.
  Pools are {"kind": "freecash|savedcash|envelope|bank", "id": 7}; id is
  required for envelope and bank and ignored otherwise.
  Dates are "YYYY-MM-DD" or RFC 3339 on input, RFC 3339 on output.

VALIDATION:
  Validation is done by the engine; DTOs only convert.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pocket-ledger/ledger"
)

// =============================================================================
// POOLS
// =============================================================================

type PoolDTO struct {
	Kind string `json:"kind"`
	ID   *int64 `json:"id,omitempty"`
}

func (p PoolDTO) toRef() (ledger.PoolRef, error) {
	kind, err := ledger.ParseKindToken(p.Kind)
	if err != nil {
		return ledger.PoolRef{}, err
	}
	return ledger.NewPoolRef(kind, p.ID)
}

func toPoolDTO(ref ledger.PoolRef) PoolDTO {
	return PoolDTO{Kind: ref.Kind.Token(), ID: ref.RefID()}
}

type EnvelopeDTO struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Target    decimal.Decimal `json:"target"`
	Allocated decimal.Decimal `json:"allocated"`
}

type BankAccountDTO struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

type CreateEnvelopeRequest struct {
	Name   string          `json:"name"`
	Target decimal.Decimal `json:"target"`
}

type CreateBankAccountRequest struct {
	Name           string          `json:"name"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// SummaryDTO is every pool of one user.
type SummaryDTO struct {
	UserID        int64            `json:"user_id"`
	FreeCashTotal decimal.Decimal  `json:"free_cash_total"`
	SavedCash     decimal.Decimal  `json:"saved_cash"`
	Unassigned    decimal.Decimal  `json:"unassigned"`
	TotalMoney    decimal.Decimal  `json:"total_money"`
	Envelopes     []EnvelopeDTO    `json:"envelopes"`
	BankAccounts  []BankAccountDTO `json:"bank_accounts"`
}

type CoverageDTO struct {
	SavedCash decimal.Decimal `json:"saved_cash"`
	Allocated decimal.Decimal `json:"allocated"`
	Shortfall decimal.Decimal `json:"shortfall"`
	Covered   bool            `json:"covered"`
}

// =============================================================================
// ENTRIES
// =============================================================================

// EntryRequest creates an expense or income. Pool is the source of an
// expense and the sink of an income.
type EntryRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date,omitempty"`
	Description string          `json:"description"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	Planned     bool            `json:"is_planned"`
	Pool        PoolDTO         `json:"pool"`
}

// EntryPatchRequest updates an expense or income; omitted fields are kept.
type EntryPatchRequest struct {
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Date          *string          `json:"date,omitempty"`
	Description   *string          `json:"description,omitempty"`
	CategoryID    *int64           `json:"category_id,omitempty"`
	ClearCategory bool             `json:"clear_category,omitempty"`
	Planned       *bool            `json:"is_planned,omitempty"`
	Pool          *PoolDTO         `json:"pool,omitempty"`
}

type EntryDTO struct {
	ID          int64           `json:"id"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	Planned     bool            `json:"is_planned"`
	Pool        PoolDTO         `json:"pool"`
}

type TransferRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date,omitempty"`
	Description string          `json:"description"`
	Planned     bool            `json:"is_planned"`
	From        PoolDTO         `json:"from"`
	To          PoolDTO         `json:"to"`
}

type TransferPatchRequest struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Date        *string          `json:"date,omitempty"`
	Description *string          `json:"description,omitempty"`
	Planned     *bool            `json:"is_planned,omitempty"`
	From        *PoolDTO         `json:"from,omitempty"`
	To          *PoolDTO         `json:"to,omitempty"`
}

type TransferDTO struct {
	ID          int64           `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Planned     bool            `json:"is_planned"`
	From        PoolDTO         `json:"from"`
	To          PoolDTO         `json:"to"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD or RFC 3339)", s)
	}
	return t.UTC(), nil
}

// parseEndDate reads the inclusive upper bound of a range. A calendar date
// covers the whole day.
func parseEndDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return parseDate(s)
}

func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return parseDate(s)
}

func optionalPool(p *PoolDTO) (*ledger.PoolRef, error) {
	if p == nil {
		return nil, nil
	}
	ref, err := p.toRef()
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (req EntryRequest) toInput(userID ledger.UserID) (ledger.EntryInput, error) {
	date, err := optionalDate(req.Date)
	if err != nil {
		return ledger.EntryInput{}, err
	}
	pool, err := req.Pool.toRef()
	if err != nil {
		return ledger.EntryInput{}, err
	}
	return ledger.EntryInput{
		UserID:      userID,
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Planned:     req.Planned,
		Pool:        pool,
	}, nil
}

func (req EntryPatchRequest) toPatch() (ledger.EntryPatch, error) {
	patch := ledger.EntryPatch{
		Amount:        req.Amount,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		ClearCategory: req.ClearCategory,
		Planned:       req.Planned,
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return ledger.EntryPatch{}, err
		}
		patch.Date = &date
	}
	pool, err := optionalPool(req.Pool)
	if err != nil {
		return ledger.EntryPatch{}, err
	}
	patch.Pool = pool
	return patch, nil
}

func (req TransferRequest) toInput(userID ledger.UserID) (ledger.TransferInput, error) {
	date, err := optionalDate(req.Date)
	if err != nil {
		return ledger.TransferInput{}, err
	}
	from, err := req.From.toRef()
	if err != nil {
		return ledger.TransferInput{}, err
	}
	to, err := req.To.toRef()
	if err != nil {
		return ledger.TransferInput{}, err
	}
	return ledger.TransferInput{
		UserID:      userID,
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
		Planned:     req.Planned,
		From:        from,
		To:          to,
	}, nil
}

func (req TransferPatchRequest) toPatch() (ledger.TransferPatch, error) {
	patch := ledger.TransferPatch{
		Amount:      req.Amount,
		Description: req.Description,
		Planned:     req.Planned,
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return ledger.TransferPatch{}, err
		}
		patch.Date = &date
	}
	var err error
	if patch.From, err = optionalPool(req.From); err != nil {
		return ledger.TransferPatch{}, err
	}
	if patch.To, err = optionalPool(req.To); err != nil {
		return ledger.TransferPatch{}, err
	}
	return patch, nil
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:          int64(e.ID),
		Kind:        string(e.Kind),
		Amount:      e.Amount,
		Date:        e.Date.UTC().Format(time.RFC3339),
		Description: e.Description,
		CategoryID:  e.CategoryID,
		Planned:     e.Planned,
		Pool:        toPoolDTO(e.Pool),
	}
}

func toTransferDTO(t ledger.Transfer) TransferDTO {
	return TransferDTO{
		ID:          int64(t.ID),
		Amount:      t.Amount,
		Date:        t.Date.UTC().Format(time.RFC3339),
		Description: t.Description,
		Planned:     t.Planned,
		From:        toPoolDTO(t.From),
		To:          toPoolDTO(t.To),
	}
}

func toEnvelopeDTO(e ledger.EnvelopeRecord) EnvelopeDTO {
	return EnvelopeDTO{ID: e.ID, Name: e.Name, Target: e.Target, Allocated: e.Allocated}
}

func toBankAccountDTO(a ledger.BankAccountRecord) BankAccountDTO {
	return BankAccountDTO{ID: a.ID, Name: a.Name, Currency: a.Currency, Balance: a.Balance}
}

func toSummaryDTO(s ledger.Summary) SummaryDTO {
	dto := SummaryDTO{
		UserID:        int64(s.UserID),
		FreeCashTotal: s.FreeCashTotal,
		SavedCash:     s.SavedCash,
		Unassigned:    s.Unassigned,
		TotalMoney:    s.TotalMoney(),
		Envelopes:     make([]EnvelopeDTO, len(s.Envelopes)),
		BankAccounts:  make([]BankAccountDTO, len(s.BankAccounts)),
	}
	for i, e := range s.Envelopes {
		dto.Envelopes[i] = toEnvelopeDTO(e)
	}
	for i, a := range s.BankAccounts {
		dto.BankAccounts[i] = toBankAccountDTO(a)
	}
	return dto
}
