// Package payment encodes and decodes the per-sale payment breakdown and
// derives the single-word tender label shown on receipts and reports.
package payment

import (
	"encoding/json"
	"strings"
)

// Method keys, fixed enumeration. Cash is the only method whose receipt
// entry never carries transaction reference fields.
const (
	MethodCash      = "cash"
	MethodNequi     = "nequi"
	MethodTransfer  = "transfer"
	MethodDaviplata = "daviplata"
	MethodCard      = "card"
)

const (
	LabelMixed     = "Mixed"
	LabelNoPayment = "No-Payment"
	// LabelVoided marks a sale whose line items were edited down to a zero
	// total; the header row is kept instead of being deleted.
	LabelVoided = "Voided"
)

var methodOrder = []string{MethodCash, MethodNequi, MethodTransfer, MethodDaviplata, MethodCard}

var displayNames = map[string]string{
	MethodCash:      "Cash",
	MethodNequi:     "Nequi",
	MethodTransfer:  "Transfer",
	MethodDaviplata: "Daviplata",
	MethodCard:      "Card",
}

// Breakdown is the structured form of a sale's payment composition.
// Amounts are integer cents. ReferenceCode/ReferenceDate describe the
// external transaction backing any non-cash amount.
type Breakdown struct {
	Amounts       map[string]int64 `json:"amounts"`
	ReferenceCode string           `json:"reference_code,omitempty"`
	ReferenceDate string           `json:"reference_date,omitempty"`
}

// Entry is one method of a breakdown normalized for display.
type Entry struct {
	Method        string
	Label         string
	AmountCents   int64
	ReferenceCode string
	ReferenceDate string
}

func IsMethod(method string) bool {
	_, ok := displayNames[method]
	return ok
}

func DisplayName(method string) string {
	if name, ok := displayNames[method]; ok {
		return name
	}
	return method
}

// New builds a Breakdown from raw per-method amounts, dropping unknown
// methods and non-positive amounts.
func New(amounts map[string]int64, refCode string, refDate string) Breakdown {
	clean := make(map[string]int64, len(amounts))
	for method, cents := range amounts {
		method = strings.ToLower(strings.TrimSpace(method))
		if !IsMethod(method) || cents <= 0 {
			continue
		}
		clean[method] += cents
	}
	return Breakdown{
		Amounts:       clean,
		ReferenceCode: strings.TrimSpace(refCode),
		ReferenceDate: strings.TrimSpace(refDate),
	}
}

// Encode serializes the breakdown to the text blob stored on the sale row.
func Encode(b Breakdown) string {
	payload, err := json.Marshal(b)
	if err != nil {
		return ""
	}
	return string(payload)
}

// Decode parses a stored blob. Malformed or absent blobs yield an empty
// breakdown, never an error: legacy rows must not break read paths.
func Decode(blob string) Breakdown {
	b, _ := DecodeChecked(blob)
	return b
}

// DecodeChecked is Decode plus a flag telling a well-formed blob apart from
// a corrupt one. An absent blob and an encoded zero-payment breakdown both
// parse cleanly; only unparseable text reports false. The result is the
// same lenient empty breakdown either way.
func DecodeChecked(blob string) (Breakdown, bool) {
	trimmed := strings.TrimSpace(blob)
	if trimmed == "" {
		return Breakdown{Amounts: map[string]int64{}}, true
	}
	if !strings.HasPrefix(trimmed, "{") {
		return Breakdown{Amounts: map[string]int64{}}, false
	}
	var b Breakdown
	if err := json.Unmarshal([]byte(trimmed), &b); err != nil {
		return Breakdown{Amounts: map[string]int64{}}, false
	}
	return New(b.Amounts, b.ReferenceCode, b.ReferenceDate), true
}

// Empty reports whether no method carries a positive amount.
func (b Breakdown) Empty() bool {
	return len(b.Amounts) == 0
}

func (b Breakdown) Total() int64 {
	var total int64
	for _, cents := range b.Amounts {
		total += cents
	}
	return total
}

func (b Breakdown) CashAmount() int64 {
	return b.Amounts[MethodCash]
}

// TenderLabel classifies the breakdown: more than one paying method is
// "Mixed", exactly one is that method's display name, none is "No-Payment".
func (b Breakdown) TenderLabel() string {
	switch len(b.Amounts) {
	case 0:
		return LabelNoPayment
	case 1:
		for method := range b.Amounts {
			return DisplayName(method)
		}
	}
	return LabelMixed
}

// Display lists the paying methods in canonical order. Reference fields are
// attached only to non-cash entries, mirroring how receipts show references
// solely for traceable electronic payments.
func (b Breakdown) Display() []Entry {
	entries := make([]Entry, 0, len(b.Amounts))
	for _, method := range methodOrder {
		cents, ok := b.Amounts[method]
		if !ok || cents <= 0 {
			continue
		}
		entry := Entry{
			Method:      method,
			Label:       DisplayName(method),
			AmountCents: cents,
		}
		if method != MethodCash {
			entry.ReferenceCode = b.ReferenceCode
			entry.ReferenceDate = b.ReferenceDate
		}
		entries = append(entries, entry)
	}
	return entries
}
