// Package sqlite implements the ledger store on an embedded SQLite
// database. Decimal columns are stored as TEXT so no precision is lost;
// the unit of work maps directly onto a database transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"
	"github.com/corebank-io/corebank-go/internal/infra/resilience"

	_ "github.com/mattn/go-sqlite3"
)

type txKey struct{}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed implementation of port.Store.
type Store struct {
	db      *sql.DB
	writers *resilience.Bulkhead
}

// New opens (or creates) the database at path, enables WAL and foreign
// keys, and initializes the schema. SQLite allows a single writer, so
// write transactions are funneled through a one-slot bulkhead instead of
// failing with SQLITE_BUSY under concurrency.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &Store{db: db, writers: resilience.NewBulkhead(1)}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		account_number TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		currency TEXT NOT NULL,
		balance TEXT NOT NULL,
		available_balance TEXT NOT NULL,
		status TEXT NOT NULL,
		interest_rate TEXT NOT NULL DEFAULT '0',
		minimum_balance TEXT NOT NULL DEFAULT '0',
		loan_amount TEXT NOT NULL DEFAULT '0',
		loan_term_months INTEGER NOT NULL DEFAULT 0,
		loan_start_date DATETIME,
		loan_end_date DATETIME,
		monthly_payment TEXT NOT NULL DEFAULT '0',
		daily_withdrawal_limit TEXT,
		transfer_fee_percent TEXT NOT NULL DEFAULT '0',
		transfer_fee_fixed TEXT NOT NULL DEFAULT '0',
		last_interest_credited_at DATETIME,
		deleted_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		reference_number TEXT NOT NULL DEFAULT '',
		related_account_id TEXT NOT NULL DEFAULT '',
		related_transaction_id TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(account_id) REFERENCES accounts(id)
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, created_at);

	CREATE TABLE IF NOT EXISTS loan_applications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		loan_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		term_months INTEGER NOT NULL,
		interest_rate TEXT NOT NULL DEFAULT '0',
		penalty_rate TEXT NOT NULL DEFAULT '0',
		purpose TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		account_id TEXT NOT NULL DEFAULT '',
		decided_by TEXT NOT NULL DEFAULT '',
		decided_at DATETIME,
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_loan_applications_user ON loan_applications(user_id);

	CREATE TABLE IF NOT EXISTS loan_repayments (
		id TEXT PRIMARY KEY,
		loan_application_id TEXT NOT NULL,
		installment_number INTEGER NOT NULL,
		due_date DATETIME NOT NULL,
		principal_amount TEXT NOT NULL,
		interest_amount TEXT NOT NULL,
		penalty_amount TEXT NOT NULL DEFAULT '0',
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(loan_application_id, installment_number),
		FOREIGN KEY(loan_application_id) REFERENCES loan_applications(id)
	);

	CREATE TABLE IF NOT EXISTS savings_plans (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		source_account_id TEXT NOT NULL,
		plan_type TEXT NOT NULL,
		principal TEXT NOT NULL DEFAULT '0',
		monthly_amount TEXT NOT NULL DEFAULT '0',
		interest_rate TEXT NOT NULL DEFAULT '0',
		term_months INTEGER NOT NULL,
		start_date DATETIME NOT NULL,
		end_date DATETIME NOT NULL,
		status TEXT NOT NULL,
		interest_credited_total TEXT NOT NULL DEFAULT '0',
		total_deposited TEXT NOT NULL DEFAULT '0',
		next_due_date DATETIME,
		last_interest_credited_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(source_account_id) REFERENCES accounts(id)
	);
	CREATE INDEX IF NOT EXISTS idx_savings_plans_user ON savings_plans(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// conn returns the open transaction from ctx, or the base connection.
func (s *Store) conn(ctx context.Context) dbtx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithinTx runs fn inside one database transaction. Nested calls reuse
// the caller's transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	if err := s.writers.Acquire(ctx); err != nil {
		return &domain.ErrStorage{Op: "begin", Err: err}
	}
	defer s.writers.Release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.ErrStorage{Op: "begin", Err: err}
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return &domain.ErrStorage{Op: "rollback", Err: rbErr}
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return &domain.ErrStorage{Op: "commit", Err: err}
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.ErrStorage{Op: "ping", Err: err}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// ── Accounts ──

const accountColumns = `id, account_number, user_id, type, currency, balance, available_balance,
	status, interest_rate, minimum_balance, loan_amount, loan_term_months, loan_start_date,
	loan_end_date, monthly_payment, daily_withdrawal_limit, transfer_fee_percent,
	transfer_fee_fixed, last_interest_credited_at, deleted_at, created_at, updated_at`

func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	var dwl any
	if a.DailyWithdrawalLimit != nil {
		dwl = a.DailyWithdrawalLimit.String()
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AccountNumber, a.UserID, a.Type, a.Currency, a.Balance, a.AvailableBalance,
		a.Status, a.InterestRate, a.MinimumBalance, a.LoanAmount, a.LoanTermMonths,
		nullTime(a.LoanStartDate), nullTime(a.LoanEndDate), a.MonthlyPayment, dwl,
		a.TransferFeePercent, a.TransferFeeFixed, nullTime(a.LastInterestCreditedAt),
		nullTime(a.DeletedAt), a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		return &domain.ErrStorage{Op: "create account", Err: err}
	}
	return nil
}

func scanAccount(row interface{ Scan(dest ...any) error }) (*domain.Account, error) {
	var (
		a          domain.Account
		loanStart  sql.NullTime
		loanEnd    sql.NullTime
		dwl        sql.NullString
		lastCredit sql.NullTime
		deletedAt  sql.NullTime
	)
	err := row.Scan(&a.ID, &a.AccountNumber, &a.UserID, &a.Type, &a.Currency,
		&a.Balance, &a.AvailableBalance, &a.Status, &a.InterestRate, &a.MinimumBalance,
		&a.LoanAmount, &a.LoanTermMonths, &loanStart, &loanEnd, &a.MonthlyPayment,
		&dwl, &a.TransferFeePercent, &a.TransferFeeFixed, &lastCredit, &deletedAt,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.LoanStartDate = fromNullTime(loanStart)
	a.LoanEndDate = fromNullTime(loanEnd)
	a.LastInterestCreditedAt = fromNullTime(lastCredit)
	a.DeletedAt = fromNullTime(deletedAt)
	if dwl.Valid {
		limit, err := domain.ParseMoney(dwl.String)
		if err != nil {
			return nil, err
		}
		a.DailyWithdrawalLimit = &limit
	}
	return &a, nil
}

func (s *Store) getAccountBy(ctx context.Context, where, arg string) (*domain.Account, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+where+` AND deleted_at IS NULL`, arg)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "account", ID: arg}
	}
	if err != nil {
		return nil, &domain.ErrStorage{Op: "get account", Err: err}
	}
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return s.getAccountBy(ctx, "id = ?", id)
}

func (s *Store) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	return s.getAccountBy(ctx, "account_number = ?", number)
}

func (s *Store) ListAccountsByUser(ctx context.Context, userID string) ([]domain.Account, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		WHERE user_id = ? AND deleted_at IS NULL ORDER BY created_at`, userID)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list accounts", Err: err}
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, &domain.ErrStorage{Op: "list accounts", Err: err}
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorage{Op: "list accounts", Err: err}
	}
	return out, nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *domain.Account) error {
	var dwl any
	if a.DailyWithdrawalLimit != nil {
		dwl = a.DailyWithdrawalLimit.String()
	}
	a.UpdatedAt = time.Now().UTC()
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE accounts SET balance = ?, available_balance = ?, status = ?,
			interest_rate = ?, minimum_balance = ?, loan_amount = ?, loan_term_months = ?,
			loan_start_date = ?, loan_end_date = ?, monthly_payment = ?,
			daily_withdrawal_limit = ?, transfer_fee_percent = ?, transfer_fee_fixed = ?,
			last_interest_credited_at = ?, deleted_at = ?, updated_at = ?
		WHERE id = ?`,
		a.Balance, a.AvailableBalance, a.Status, a.InterestRate, a.MinimumBalance,
		a.LoanAmount, a.LoanTermMonths, nullTime(a.LoanStartDate), nullTime(a.LoanEndDate),
		a.MonthlyPayment, dwl, a.TransferFeePercent, a.TransferFeeFixed,
		nullTime(a.LastInterestCreditedAt), nullTime(a.DeletedAt), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return &domain.ErrStorage{Op: "update account", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "account", ID: a.ID}
	}
	return nil
}

func (s *Store) ListAccrualCandidateAccounts(ctx context.Context, monthStart time.Time) ([]domain.Account, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		WHERE type = ? AND status = ? AND deleted_at IS NULL
			AND CAST(interest_rate AS REAL) > 0
			AND (last_interest_credited_at IS NULL OR last_interest_credited_at < ?)
		ORDER BY id`,
		domain.AccountTypeSavings, domain.AccountStatusActive, monthStart.UTC())
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list accrual accounts", Err: err}
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, &domain.ErrStorage{Op: "list accrual accounts", Err: err}
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorage{Op: "list accrual accounts", Err: err}
	}
	return out, nil
}

// ── Transactions ──

const transactionColumns = `id, account_id, type, amount, balance_after, description,
	reference_number, related_account_id, related_transaction_id, metadata, created_at`

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	meta := ""
	if len(t.Metadata) > 0 {
		b, err := json.Marshal(t.Metadata)
		if err != nil {
			return &domain.ErrStorage{Op: "encode transaction metadata", Err: err}
		}
		meta = string(b)
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.Type, t.Amount, t.BalanceAfter, t.Description,
		t.ReferenceNumber, t.RelatedAccountID, t.RelatedTransactionID, meta, t.CreatedAt.UTC(),
	)
	if err != nil {
		return &domain.ErrStorage{Op: "create transaction", Err: err}
	}
	return nil
}

func scanTransaction(rows *sql.Rows) (*domain.Transaction, error) {
	var (
		t    domain.Transaction
		meta string
	)
	err := rows.Scan(&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.BalanceAfter,
		&t.Description, &t.ReferenceNumber, &t.RelatedAccountID, &t.RelatedTransactionID,
		&meta, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &t.Metadata); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string, page, pageSize int) ([]domain.Transaction, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		accountID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list transactions", Err: err}
	}
	defer rows.Close()

	out := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, &domain.ErrStorage{Op: "list transactions", Err: err}
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorage{Op: "list transactions", Err: err}
	}
	return out, nil
}

func (s *Store) SumDebitsSince(ctx context.Context, accountID string, since time.Time) (domain.Money, error) {
	// Amounts are TEXT columns; sum in decimal space, not SQL floats.
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT amount FROM transactions
		WHERE account_id = ? AND type IN (?, ?) AND created_at >= ?`,
		accountID, domain.TransactionWithdrawal, domain.TransactionTransferOut, since.UTC())
	if err != nil {
		return domain.ZeroMoney(), &domain.ErrStorage{Op: "sum debits", Err: err}
	}
	defer rows.Close()

	total := domain.ZeroMoney()
	for rows.Next() {
		var amount domain.Money
		if err := rows.Scan(&amount); err != nil {
			return domain.ZeroMoney(), &domain.ErrStorage{Op: "sum debits", Err: err}
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return domain.ZeroMoney(), &domain.ErrStorage{Op: "sum debits", Err: err}
	}
	return total, nil
}
