package ibkr

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/utils"
)

// column aliases are matched as lowercase substrings of the header cells; the
// first cell matching any alias wins.
var (
	dateAliases        = []string{"date", "fecha"}
	accountAliases     = []string{"account", "cuenta"}
	descriptionAliases = []string{"description", "descripción"}
	typeAliases        = []string{"transaction type", "transaction t"}
	symbolAliases      = []string{"symbol", "símbolo"}
	quantityAliases    = []string{"quantity", "cantidad"}
	priceAliases       = []string{"price", "precio"}
	grossAliases       = []string{"gross amount", "gross amoun"}
	commissionAliases  = []string{"commission", "comisión"}
	netAliases         = []string{"net amount", "net"}

	startingCashLabels = []string{"starting cash", "efectivo inicial"}
)

type columnMap struct {
	date, account, description, txType, symbol int
	quantity, price, gross, commission, net    int
}

// ActivityStatementParser reads the "Transaction History" activity export of
// Interactive Brokers, in English or Spanish, comma, semicolon or tab delimited.
type ActivityStatementParser struct {
	now func() time.Time
}

func NewParser() *ActivityStatementParser {
	return &ActivityStatementParser{now: time.Now}
}

// Parse extracts the transaction rows and the summary starting cash.
// Malformed numeric cells become 0; only a missing header or an empty
// section fails the batch.
func (p *ActivityStatementParser) Parse(r io.Reader, opts models.ImportOptions) (*models.ImportResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ibkr parser: failed to read statement: %w", err)
	}

	lines := splitLines(string(raw))
	if len(lines) == 0 {
		return nil, models.ErrImportNoInput
	}

	delimiter := detectDelimiter(lines[0])
	rows := make([][]string, len(lines))
	for i, line := range lines {
		rows[i] = splitRow(line, delimiter)
	}

	result := &models.ImportResult{StartingCash: findStartingCash(rows)}

	headerIdx := -1
	for i, row := range rows {
		if strings.Contains(lowerCell(row, 0), "transaction") && lowerCell(row, 1) == "header" {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, models.ErrImportHeaderNotFound
	}
	cols := mapColumns(rows[headerIdx])

	today := opts.Today
	if today.IsZero() {
		today = p.now()
	}
	strategy := strings.TrimSpace(opts.Strategy)
	if strategy == "" {
		strategy = models.DefaultImportStrategy
	}

	for _, row := range rows[headerIdx+1:] {
		first := lowerCell(row, 0)
		if !strings.Contains(first, "transaction") {
			if first != "" {
				break // next section
			}
			continue
		}
		if lowerCell(row, 1) != "data" {
			continue
		}

		symbol := cell(row, cols.symbol)
		if symbol == "" || strings.Contains(strings.ToLower(symbol), "total") {
			result.SkippedRows++
			continue
		}
		result.Transactions = append(result.Transactions, buildTransaction(row, cols, symbol, strategy, today, opts.AccountLabel))
	}

	if len(result.Transactions) == 0 {
		return nil, models.ErrImportNoValidRows
	}
	return result, nil
}

func buildTransaction(row []string, cols columnMap, symbol, strategy string, today time.Time, account models.AccountLabel) models.Transaction {
	quantity := utils.CleanNumber(cell(row, cols.quantity))

	date := cell(row, cols.date)
	if date == "" {
		date = today.Format("2006-01-02")
	}

	txType := cell(row, cols.txType)
	if txType == "" {
		if quantity > 0 {
			txType = "BUY"
		} else {
			txType = "SELL"
		}
	}

	return models.Transaction{
		Header:          "Data",
		Date:            date,
		Account:         cell(row, cols.account),
		Description:     cell(row, cols.description),
		TransactionType: txType,
		Symbol:          symbol,
		Quantity:        quantity,
		Price:           utils.CleanNumber(cell(row, cols.price)),
		GrossAmount:     utils.CleanNumber(cell(row, cols.gross)),
		Commission:      utils.CleanNumber(cell(row, cols.commission)),
		NetAmount:       utils.CleanNumber(cell(row, cols.net)),
		Strategy:        strategy,
		AccountLabel:    account,
	}
}

// findStartingCash returns the value of the last summary "starting cash" row.
func findStartingCash(rows [][]string) *float64 {
	var found *float64
	for _, row := range rows {
		if !strings.Contains(lowerCell(row, 0), "summary") || !strings.Contains(lowerCell(row, 1), "data") {
			continue
		}
		if containsAny(lowerCell(row, 2), startingCashLabels) {
			v := utils.CleanNumber(cell(row, 3))
			found = &v
		}
	}
	return found
}

func mapColumns(header []string) columnMap {
	find := func(aliases []string) int {
		for i, h := range header {
			if containsAny(strings.ToLower(h), aliases) {
				return i
			}
		}
		return -1
	}
	return columnMap{
		date:        find(dateAliases),
		account:     find(accountAliases),
		description: find(descriptionAliases),
		txType:      find(typeAliases),
		symbol:      find(symbolAliases),
		quantity:    find(quantityAliases),
		price:       find(priceAliases),
		gross:       find(grossAliases),
		commission:  find(commissionAliases),
		net:         find(netAliases),
	}
}

func splitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func detectDelimiter(firstLine string) rune {
	stripped := strings.ReplaceAll(firstLine, `"`, "")
	switch {
	case strings.Contains(stripped, "\t"):
		return '\t'
	case strings.Contains(stripped, ";"):
		return ';'
	default:
		return ','
	}
}

// splitRow honours quoted cells such as "1,234.56" and falls back to a plain
// split when the line is not valid CSV. Quote characters never survive.
func splitRow(line string, delimiter rune) []string {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	record, err := reader.Read()
	if err != nil {
		record = strings.Split(strings.ReplaceAll(line, `"`, ""), string(delimiter))
	}
	for i := range record {
		record[i] = strings.TrimSpace(strings.ReplaceAll(record[i], `"`, ""))
	}
	return record
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func lowerCell(row []string, idx int) string {
	return strings.ToLower(cell(row, idx))
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
