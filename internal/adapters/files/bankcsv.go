package files

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/ledger"
)

// Bank statement columns. date, description and amount are required.
const (
	colID          = "id"
	colDate        = "date"
	colDescription = "description"
	colAmount      = "amount"
	colAccount     = "account"
	colVATRate     = "vat_rate"
)

var requiredColumns = []string{colDate, colDescription, colAmount}

// columnAliases maps common export headers onto our column names.
var columnAliases = map[string]string{
	"libelle":     colDescription,
	"label":       colDescription,
	"montant":     colAmount,
	"iban":        colAccount,
	"account_ref": colAccount,
	"reference":   colID,
}

// BankStatement is the result of reading a CSV bank export.
type BankStatement struct {
	Transactions []ledger.Transaction
	// Skipped holds one message per row that could not be read at all
	Skipped []string
}

// LoadBankCSV reads a CSV bank statement file.
func LoadBankCSV(path string) (*BankStatement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bank statement: %w", err)
	}
	defer f.Close()

	return ParseBankCSV(f)
}

// ParseBankCSV reads a bank statement with a header row naming at least
// date, description and amount; account, id and vat_rate are optional.
// Comma and semicolon separators are both accepted. Every row becomes an
// active bank_import transaction; rows without an id get "bank-<line>".
func ParseBankCSV(r io.Reader) (*BankStatement, error) {
	br := bufio.NewReader(r)
	comma, err := sniffSeparator(br)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(br)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("bank statement is empty")
		}
		return nil, fmt.Errorf("error reading CSV headers: %w", err)
	}
	columns, err := columnMap(headers)
	if err != nil {
		return nil, err
	}

	statement := &BankStatement{Transactions: []ledger.Transaction{}}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			statement.Skipped = append(statement.Skipped, err.Error())
			continue
		}
		if isBlank(record) {
			continue
		}

		line, _ := reader.FieldPos(0)
		statement.Transactions = append(statement.Transactions, bankTransaction(record, columns, line))
	}
	return statement, nil
}

func bankTransaction(record []string, columns map[string]int, line int) ledger.Transaction {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	amount, _ := ledger.ParseAmount(field(colAmount))
	return ledger.Transaction{
		ID:          orDefault(field(colID), fmt.Sprintf("bank-%d", line)),
		Date:        ledger.ParseDate(field(colDate)),
		Description: field(colDescription),
		Amount:      amount,
		Source:      ledger.SourceBankImport,
		Status:      ledger.StatusActive,
		AccountRef:  field(colAccount),
		VATRate:     optionalAmount(rawValue(field(colVATRate))),
	}
}

func columnMap(headers []string) (map[string]int, error) {
	columns := make(map[string]int, len(headers))
	for i, header := range headers {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}

	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, fmt.Errorf("required column %q not found in bank statement", col)
		}
	}
	return columns, nil
}

// sniffSeparator picks ';' when the header line has more semicolons than
// commas. French bank exports use ';' because ',' is the decimal mark.
func sniffSeparator(br *bufio.Reader) (rune, error) {
	head, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, fmt.Errorf("error reading bank statement: %w", err)
	}
	first, _, _ := strings.Cut(string(head), "\n")
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';', nil
	}
	return ',', nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
