// Package ledger defines the bookkeeping records the reconciliation engine
// reads: bank and manual transactions, and supplier invoices.
//
// Records are owned by the caller's store. The engine treats them as
// immutable values for the duration of a run and only recommends status
// transitions in its results.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the cash direction of a transaction.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Source records where a transaction came from.
type Source string

const (
	SourceManual     Source = "manual"
	SourceBankImport Source = "bank_import"
)

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	StatusActive     TransactionStatus = "active"
	StatusReconciled TransactionStatus = "reconciled"
	StatusDuplicate  TransactionStatus = "duplicate"
	StatusPending    TransactionStatus = "pending"
)

// InvoiceStatus is the lifecycle state of a supplier invoice.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoicePending   InvoiceStatus = "pending"
	InvoiceValidated InvoiceStatus = "validated"
	InvoicePaid      InvoiceStatus = "paid"
)

// Transaction is a financial movement, either typed in by hand or imported
// from a bank statement.
type Transaction struct {
	ID          string            `json:"id"`
	Date        time.Time         `json:"date"` // zero when the source date was unparseable
	Description string            `json:"description"`
	Amount      decimal.Decimal   `json:"amount"` // signed; negative is money out
	Type        TransactionType   `json:"type,omitempty"`
	Source      Source            `json:"source"`
	Status      TransactionStatus `json:"status"`
	Category    string            `json:"category,omitempty"`
	AccountRef  string            `json:"account_ref,omitempty"` // counterparty IBAN or account number
	VATRate     *decimal.Decimal  `json:"vat_rate,omitempty"`    // e.g. 0.20, when the bank line carries it
}

// IsExpense reports whether the transaction is money out. An explicit Type
// wins; otherwise the sign of Amount decides.
func (t Transaction) IsExpense() bool {
	switch t.Type {
	case Expense:
		return true
	case Income:
		return false
	}
	return t.Amount.IsNegative()
}

// AbsAmount returns the unsigned amount.
func (t Transaction) AbsAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// Invoice is a supplier bill awaiting (or having received) payment.
type Invoice struct {
	ID           string           `json:"id"`
	Number       string           `json:"number,omitempty"`
	SupplierName string           `json:"supplier_name"`
	InvoiceDate  time.Time        `json:"invoice_date"`
	DueDate      time.Time        `json:"due_date,omitempty"`
	TotalAmount  decimal.Decimal  `json:"total_amount"` // tax included
	TaxAmount    *decimal.Decimal `json:"tax_amount,omitempty"`
	VATRate      *decimal.Decimal `json:"vat_rate,omitempty"`
	Status       InvoiceStatus    `json:"status"`
}

// PaymentAnchor is the date the payment window is measured from: the due
// date when known, the invoice date otherwise.
func (i Invoice) PaymentAnchor() time.Time {
	if !i.DueDate.IsZero() {
		return i.DueDate
	}
	return i.InvoiceDate
}

// HasVAT reports whether the invoice declares any VAT information.
func (i Invoice) HasVAT() bool {
	return i.TaxAmount != nil || i.VATRate != nil
}
