// Package postgres implements the ledger store on PostgreSQL through GORM.
// The unit of work is a database transaction; amounts live in NUMERIC
// columns so Postgres arithmetic could be used for reporting without
// precision loss.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type txKey struct{}

// Store is the PostgreSQL-backed implementation of port.Store.
type Store struct {
	db *gorm.DB
}

// New connects to Postgres and migrates the schema.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, &domain.ErrStorage{Op: "connect", Err: err}
	}
	if err := db.AutoMigrate(
		&accountRow{}, &transactionRow{}, &loanApplicationRow{},
		&loanRepaymentRow{}, &savingsPlanRow{},
	); err != nil {
		return nil, &domain.ErrStorage{Op: "migrate", Err: err}
	}
	return &Store{db: db}, nil
}

// conn returns the open transaction from ctx, or a session on the base
// connection.
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// WithinTx runs fn inside one database transaction. Nested calls reuse
// the caller's transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return &domain.ErrStorage{Op: "ping", Err: err}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return &domain.ErrStorage{Op: "ping", Err: err}
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ── Accounts ──

func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	if err := s.conn(ctx).Create(accountToRow(a)).Error; err != nil {
		return &domain.ErrStorage{Op: "create account", Err: err}
	}
	return nil
}

func (s *Store) getAccountWhere(ctx context.Context, id, query string, arg string) (*domain.Account, error) {
	var row accountRow
	err := s.conn(ctx).Where(query, arg).Where("deleted_at IS NULL").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	if err != nil {
		return nil, &domain.ErrStorage{Op: "get account", Err: err}
	}
	return row.toDomain(), nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return s.getAccountWhere(ctx, id, "id = ?", id)
}

func (s *Store) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	return s.getAccountWhere(ctx, number, "account_number = ?", number)
}

func (s *Store) ListAccountsByUser(ctx context.Context, userID string) ([]domain.Account, error) {
	var rows []accountRow
	err := s.conn(ctx).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list accounts", Err: err}
	}
	out := make([]domain.Account, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *domain.Account) error {
	a.UpdatedAt = time.Now().UTC()
	res := s.conn(ctx).Model(&accountRow{}).Where("id = ?", a.ID).
		Select("*").Omit("id", "created_at").Updates(accountToRow(a))
	if res.Error != nil {
		return &domain.ErrStorage{Op: "update account", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "account", ID: a.ID}
	}
	return nil
}

func (s *Store) ListAccrualCandidateAccounts(ctx context.Context, monthStart time.Time) ([]domain.Account, error) {
	var rows []accountRow
	err := s.conn(ctx).
		Where("type = ? AND status = ? AND deleted_at IS NULL", domain.AccountTypeSavings, domain.AccountStatusActive).
		Where("interest_rate > 0").
		Where("last_interest_credited_at IS NULL OR last_interest_credited_at < ?", monthStart.UTC()).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list accrual accounts", Err: err}
	}
	out := make([]domain.Account, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

// ── Transactions ──

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	row := &transactionRow{
		ID:                   t.ID,
		AccountID:            t.AccountID,
		Type:                 string(t.Type),
		Amount:               t.Amount,
		BalanceAfter:         t.BalanceAfter,
		Description:          t.Description,
		ReferenceNumber:      t.ReferenceNumber,
		RelatedAccountID:     t.RelatedAccountID,
		RelatedTransactionID: t.RelatedTransactionID,
		CreatedAt:            t.CreatedAt,
	}
	if len(t.Metadata) > 0 {
		b, err := json.Marshal(t.Metadata)
		if err != nil {
			return &domain.ErrStorage{Op: "encode transaction metadata", Err: err}
		}
		row.Metadata = b
	}
	if err := s.conn(ctx).Create(row).Error; err != nil {
		return &domain.ErrStorage{Op: "create transaction", Err: err}
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string, page, pageSize int) ([]domain.Transaction, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	var rows []transactionRow
	err := s.conn(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(pageSize).Offset((page - 1) * pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list transactions", Err: err}
	}
	out := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		t := domain.Transaction{
			ID:                   r.ID,
			AccountID:            r.AccountID,
			Type:                 domain.TransactionType(r.Type),
			Amount:               r.Amount,
			BalanceAfter:         r.BalanceAfter,
			Description:          r.Description,
			ReferenceNumber:      r.ReferenceNumber,
			RelatedAccountID:     r.RelatedAccountID,
			RelatedTransactionID: r.RelatedTransactionID,
			CreatedAt:            r.CreatedAt,
		}
		if len(r.Metadata) > 0 {
			if err := json.Unmarshal(r.Metadata, &t.Metadata); err != nil {
				return nil, &domain.ErrStorage{Op: "decode transaction metadata", Err: err}
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) SumDebitsSince(ctx context.Context, accountID string, since time.Time) (domain.Money, error) {
	var total domain.Money
	err := s.conn(ctx).Model(&transactionRow{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("account_id = ? AND type IN ? AND created_at >= ?",
			accountID,
			[]string{string(domain.TransactionWithdrawal), string(domain.TransactionTransferOut)},
			since.UTC()).
		Scan(&total).Error
	if err != nil {
		return domain.ZeroMoney(), &domain.ErrStorage{Op: "sum debits", Err: err}
	}
	return total, nil
}
