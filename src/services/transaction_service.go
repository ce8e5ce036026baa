package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/google/uuid"
)

const transactionColumns = `id, header, date, account, description, transaction_type, symbol, quantity, price,
	gross_amount, commission, net_amount, strategy, account_label, created_at, analysis_id, analysis_image_url`

type transactionServiceImpl struct {
	db *sql.DB
}

func NewTransactionService(db *sql.DB) TransactionService {
	return &transactionServiceImpl{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	var analysisID, analysisURL sql.NullString
	var label string
	err := row.Scan(&tx.ID, &tx.Header, &tx.Date, &tx.Account, &tx.Description, &tx.TransactionType, &tx.Symbol,
		&tx.Quantity, &tx.Price, &tx.GrossAmount, &tx.Commission, &tx.NetAmount, &tx.Strategy, &label,
		&tx.CreatedAt, &analysisID, &analysisURL)
	if err != nil {
		return nil, err
	}
	tx.AccountLabel = models.AccountLabel(label)
	tx.AnalysisID = analysisID.String
	tx.AnalysisImageURL = analysisURL.String
	return &tx, nil
}

// List returns the partition's rows, most recent date first.
func (s *transactionServiceImpl) List(ctx context.Context, userID int64, account models.AccountLabel) ([]models.Transaction, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND account_label = ?
		ORDER BY date DESC, created_at DESC, id`, userID, account)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func (s *transactionServiceImpl) Get(ctx context.Context, userID int64, account models.AccountLabel, id string) (*models.Transaction, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE id = ? AND user_id = ? AND account_label = ?`, id, userID, account))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
	}
	return tx, nil
}

// InsertBatch stores all rows or none. IDs and the partition are assigned here.
func (s *transactionServiceImpl) InsertBatch(ctx context.Context, userID int64, account models.AccountLabel, txs []models.Transaction) ([]models.Transaction, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return []models.Transaction{}, nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `INSERT INTO transactions
		(id, user_id, account_label, header, date, account, description, transaction_type, symbol,
		 quantity, price, gross_amount, commission, net_amount, strategy, analysis_id, analysis_image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare transaction insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	stored := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		tx.ID = uuid.NewString()
		tx.AccountLabel = account
		tx.CreatedAt = now
		if tx.Header == "" {
			tx.Header = "Data"
		}
		_, err := stmt.ExecContext(ctx, tx.ID, userID, account, tx.Header, tx.Date, tx.Account, tx.Description,
			tx.TransactionType, tx.Symbol, tx.Quantity, tx.Price, tx.GrossAmount, tx.Commission, tx.NetAmount,
			tx.Strategy, nullIfEmpty(tx.AnalysisID), nullIfEmpty(tx.AnalysisImageURL), tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert transaction for %s on %s: %w", tx.Symbol, tx.Date, err)
		}
		stored = append(stored, tx)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	logger.FromContext(ctx).Info("Transactions inserted", "count", len(stored), "account", account)
	return stored, nil
}

// Update applies a partial update and returns the stored row.
func (s *transactionServiceImpl) Update(ctx context.Context, userID int64, account models.AccountLabel, id string, upd models.TransactionUpdate) (*models.Transaction, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}
	if upd.IsEmpty() {
		return nil, ErrEmptyUpdate
	}

	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if upd.Date != nil {
		add("date", *upd.Date)
	}
	if upd.Account != nil {
		add("account", *upd.Account)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.TransactionType != nil {
		add("transaction_type", *upd.TransactionType)
	}
	if upd.Symbol != nil {
		add("symbol", *upd.Symbol)
	}
	if upd.Quantity != nil {
		add("quantity", *upd.Quantity)
	}
	if upd.Price != nil {
		add("price", *upd.Price)
	}
	if upd.GrossAmount != nil {
		add("gross_amount", *upd.GrossAmount)
	}
	if upd.Commission != nil {
		add("commission", *upd.Commission)
	}
	if upd.NetAmount != nil {
		add("net_amount", *upd.NetAmount)
	}
	if upd.Strategy != nil {
		add("strategy", *upd.Strategy)
	}
	if upd.AnalysisID != nil {
		add("analysis_id", nullIfEmpty(*upd.AnalysisID))
	}
	if upd.AnalysisImageURL != nil {
		add("analysis_image_url", nullIfEmpty(*upd.AnalysisImageURL))
	}

	args = append(args, id, userID, account)
	res, err := s.db.ExecContext(ctx, `UPDATE transactions SET `+strings.Join(sets, ", ")+`
		WHERE id = ? AND user_id = ? AND account_label = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, userID, account, id)
}

func (s *transactionServiceImpl) Delete(ctx context.Context, userID int64, account models.AccountLabel, id string) error {
	if err := checkAccount(account); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ? AND account_label = ?`, id, userID, account)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	logger.FromContext(ctx).Info("Transaction deleted", "transactionID", id)
	return nil
}

// SetSymbolStrategy retags every execution of a consolidated trade.
func (s *transactionServiceImpl) SetSymbolStrategy(ctx context.Context, userID int64, account models.AccountLabel, symbol, strategy string) (int64, error) {
	if err := checkAccount(account); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE transactions SET strategy = ?
		WHERE user_id = ? AND account_label = ? AND symbol = ?`, strategy, userID, account, symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to retag %s: %w", symbol, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

// LinkEvidence stores the analysis reference on every execution of symbol so
// the consolidated trade shows it whatever execution it inherits from. A manual
// image keeps the existing analysis_id.
func (s *transactionServiceImpl) LinkEvidence(ctx context.Context, userID int64, account models.AccountLabel, symbol string, link EvidenceLink) (int64, error) {
	if err := checkAccount(account); err != nil {
		return 0, err
	}
	query := `UPDATE transactions SET analysis_image_url = ? WHERE user_id = ? AND account_label = ? AND symbol = ?`
	args := []interface{}{link.ImageURL, userID, account, symbol}
	if link.AnalysisID != "" {
		query = `UPDATE transactions SET analysis_id = ?, analysis_image_url = ? WHERE user_id = ? AND account_label = ? AND symbol = ?`
		args = append([]interface{}{link.AnalysisID}, args...)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to link evidence to %s: %w", symbol, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, ErrNotFound
	}
	logger.FromContext(ctx).Info("Evidence linked", "symbol", symbol, "analysisID", link.AnalysisID, "rows", n)
	return n, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
