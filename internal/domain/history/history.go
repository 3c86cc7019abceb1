// Package history keeps the per-supplier patterns learned from confirmed
// invoice payments: recurring description fragments, recurring account
// references and the running average paid amount.
//
// Histories are a bonus signal for invoice matching, never a filter, so a
// supplier's first invoice can still match cold. Updates return new values;
// persisting them is the caller's job.
package history

import (
	"maps"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SupplierHistory is what has been learned about one supplier.
type SupplierHistory struct {
	Key           string          `json:"key"`
	DisplayName   string          `json:"display_name"`
	Descriptions  Fragments       `json:"descriptions"`
	Accounts      Fragments       `json:"accounts"`
	AvgAmount     decimal.Decimal `json:"avg_amount"`
	MatchCount    int             `json:"match_count"`
	LastMatchedAt time.Time       `json:"last_matched_at"`
}

// Histories indexes supplier histories by normalised supplier name.
type Histories map[string]SupplierHistory

// Lookup finds the history for a supplier name in any spelling.
func (h Histories) Lookup(supplierName string) (SupplierHistory, bool) {
	key := Normalize(supplierName)
	if key == "" {
		return SupplierHistory{}, false
	}
	sh, ok := h[key]
	return sh, ok
}

// Observation is one confirmed supplier payment.
type Observation struct {
	SupplierName string
	Description  string
	AccountRef   string
	Amount       decimal.Decimal
	MatchedAt    time.Time
}

// Update folds an observation into the histories and returns a new map.
// The input map and its values are left untouched.
func Update(histories Histories, obs Observation) Histories {
	out := make(Histories, len(histories)+1)
	maps.Copy(out, histories)

	key := Normalize(obs.SupplierName)
	if key == "" {
		return out
	}

	amount := obs.Amount.Abs()
	current, ok := out[key]
	if !ok {
		current = SupplierHistory{
			Key:          key,
			DisplayName:  strings.TrimSpace(obs.SupplierName),
			Descriptions: NewFragments(DefaultFragmentCapacity),
			Accounts:     NewFragments(DefaultFragmentCapacity),
			AvgAmount:    decimal.Zero,
		}
	}

	n := decimal.NewFromInt(int64(current.MatchCount))
	current.AvgAmount = current.AvgAmount.Mul(n).Add(amount).Div(n.Add(decimal.NewFromInt(1)))
	current.MatchCount++
	current.Descriptions = current.Descriptions.Add(DescriptionFragment(obs.Description))
	current.Accounts = current.Accounts.Add(AccountFragment(obs.AccountRef))
	current.LastMatchedAt = obs.MatchedAt

	out[key] = current
	return out
}

// UpdateSupplierHistory records a confirmed payment of amount against the
// supplier, described on the bank statement as description.
func UpdateSupplierHistory(histories Histories, supplierName, description string, amount decimal.Decimal, at time.Time) Histories {
	return Update(histories, Observation{
		SupplierName: supplierName,
		Description:  description,
		Amount:       amount,
		MatchedAt:    at,
	})
}

// Boost returns the learned-pattern bonus for a transaction: boost once if
// its description contains a known description fragment, and once more if
// its account reference matches a known account fragment.
func (sh SupplierHistory) Boost(description, accountRef string, boost float64) float64 {
	var total float64

	desc := Normalize(description)
	for _, fragment := range sh.Descriptions.Values() {
		if fragment != "" && strings.Contains(desc, fragment) {
			total += boost
			break
		}
	}

	account := AccountFragment(accountRef)
	if account != "" {
		for _, fragment := range sh.Accounts.Values() {
			if strings.Contains(account, fragment) || strings.Contains(fragment, account) {
				total += boost
				break
			}
		}
	}

	return total
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// Normalize maps a name to its lookup key: lower case, no diacritics,
// punctuation turned into spaces, whitespace collapsed. "ACME Sàrl." and
// "acme  sarl" share a key.
func Normalize(name string) string {
	t := transform.Chain(norm.NFD, stripMarks, norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, folded)

	return strings.Join(strings.Fields(mapped), " ")
}

// DescriptionFragment reduces a bank description to its recurring part by
// dropping tokens that carry digits (references, dates, invoice numbers).
func DescriptionFragment(description string) string {
	var kept []string
	for _, token := range strings.Fields(Normalize(description)) {
		if strings.IndexFunc(token, unicode.IsDigit) >= 0 {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

// AccountFragment canonicalises an account reference to upper-case
// alphanumerics.
func AccountFragment(ref string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z':
			return r
		case r >= 'a' && r <= 'z':
			return unicode.ToUpper(r)
		default:
			return -1
		}
	}, ref)
}
