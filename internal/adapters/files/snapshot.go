// Package files reads bookkeeping snapshots from disk: a JSON document
// holding transactions and invoices, and CSV bank statements.
//
// Field values are parsed leniently. A date or amount that cannot be read
// becomes the zero value and the record is kept; only a document that cannot
// be decoded at all is an error.
package files

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/ledger"
)

// Snapshot is the decoded content of an input file.
type Snapshot struct {
	Transactions []ledger.Transaction
	Invoices     []ledger.Invoice
}

// rawValue holds a JSON scalar as text, whether it was written as a string
// or a number.
type rawValue string

func (v *rawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = rawValue(s)
		return nil
	}
	*v = rawValue(data)
	return nil
}

type snapshotFile struct {
	Transactions []transactionRecord `json:"transactions"`
	Invoices     []invoiceRecord     `json:"invoices"`
}

type transactionRecord struct {
	ID          rawValue `json:"id"`
	Date        rawValue `json:"date"`
	Description string   `json:"description"`
	Amount      rawValue `json:"amount"`
	Type        string   `json:"type"`
	Source      string   `json:"source"`
	Status      string   `json:"status"`
	Category    string   `json:"category"`
	AccountRef  string   `json:"account_ref"`
	VATRate     rawValue `json:"vat_rate"`
}

type invoiceRecord struct {
	ID           rawValue `json:"id"`
	Number       rawValue `json:"number"`
	SupplierName string   `json:"supplier_name"`
	InvoiceDate  rawValue `json:"invoice_date"`
	DueDate      rawValue `json:"due_date"`
	TotalAmount  rawValue `json:"total_amount"`
	TaxAmount    rawValue `json:"tax_amount"`
	VATRate      rawValue `json:"vat_rate"`
	Status       string   `json:"status"`
}

// LoadSnapshot reads a JSON snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	return ParseSnapshot(f)
}

// ParseSnapshot decodes a JSON snapshot. Records without an id get a
// positional one ("tx-3", "inv-1").
func ParseSnapshot(r io.Reader) (*Snapshot, error) {
	var file snapshotFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	snap := &Snapshot{
		Transactions: make([]ledger.Transaction, 0, len(file.Transactions)),
		Invoices:     make([]ledger.Invoice, 0, len(file.Invoices)),
	}
	for i, rec := range file.Transactions {
		snap.Transactions = append(snap.Transactions, rec.toTransaction(i))
	}
	for i, rec := range file.Invoices {
		snap.Invoices = append(snap.Invoices, rec.toInvoice(i))
	}
	return snap, nil
}

func (rec transactionRecord) toTransaction(index int) ledger.Transaction {
	amount, _ := ledger.ParseAmount(string(rec.Amount))

	tx := ledger.Transaction{
		ID:          orDefault(string(rec.ID), fmt.Sprintf("tx-%d", index+1)),
		Date:        ledger.ParseDate(string(rec.Date)),
		Description: strings.TrimSpace(rec.Description),
		Amount:      amount,
		Type:        ledger.TransactionType(strings.ToLower(strings.TrimSpace(rec.Type))),
		Source:      ledger.Source(orDefault(strings.ToLower(rec.Source), string(ledger.SourceManual))),
		Status:      ledger.TransactionStatus(orDefault(strings.ToLower(rec.Status), string(ledger.StatusActive))),
		Category:    strings.TrimSpace(rec.Category),
		AccountRef:  strings.TrimSpace(rec.AccountRef),
		VATRate:     optionalAmount(rec.VATRate),
	}

	switch tx.Type {
	case ledger.Income, ledger.Expense:
	default:
		tx.Type = ""
	}
	return tx
}

func (rec invoiceRecord) toInvoice(index int) ledger.Invoice {
	total, _ := ledger.ParseAmount(string(rec.TotalAmount))

	return ledger.Invoice{
		ID:           orDefault(string(rec.ID), fmt.Sprintf("inv-%d", index+1)),
		Number:       strings.TrimSpace(string(rec.Number)),
		SupplierName: strings.TrimSpace(rec.SupplierName),
		InvoiceDate:  ledger.ParseDate(string(rec.InvoiceDate)),
		DueDate:      ledger.ParseDate(string(rec.DueDate)),
		TotalAmount:  total,
		TaxAmount:    optionalAmount(rec.TaxAmount),
		VATRate:      optionalAmount(rec.VATRate),
		Status:       ledger.InvoiceStatus(orDefault(strings.ToLower(rec.Status), string(ledger.InvoicePending))),
	}
}

// optionalAmount returns nil for an absent or unreadable value
func optionalAmount(v rawValue) *decimal.Decimal {
	d, ok := ledger.ParseAmount(string(v))
	if !ok {
		return nil
	}
	return &d
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
