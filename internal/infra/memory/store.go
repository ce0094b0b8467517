// Package memory implements the ledger store in process memory. It backs
// the service tests and the DB_DRIVER=memory dev mode. The unit of work
// is an exclusive section: one writer at a time, with a full snapshot
// taken on entry so a failed unit rolls back to the pre-tx state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"
)

type txMarker struct{}

// Store is a thread-safe in-memory implementation of port.Store.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]domain.Account
	numberIndex  map[string]string // account number → id
	transactions []domain.Transaction
	applications map[string]domain.LoanApplication
	repayments   map[string]domain.LoanRepayment
	plans        map[string]domain.SavingsPlan
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:     make(map[string]domain.Account),
		numberIndex:  make(map[string]string),
		applications: make(map[string]domain.LoanApplication),
		repayments:   make(map[string]domain.LoanRepayment),
		plans:        make(map[string]domain.SavingsPlan),
	}
}

func inTx(ctx context.Context) bool {
	return ctx.Value(txMarker{}) != nil
}

// lock acquires the store mutex unless the caller already holds it through
// an open unit of work.
func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	accounts     map[string]domain.Account
	numberIndex  map[string]string
	transactions []domain.Transaction
	applications map[string]domain.LoanApplication
	repayments   map[string]domain.LoanRepayment
	plans        map[string]domain.SavingsPlan
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		accounts:     make(map[string]domain.Account, len(s.accounts)),
		numberIndex:  make(map[string]string, len(s.numberIndex)),
		transactions: append([]domain.Transaction(nil), s.transactions...),
		applications: make(map[string]domain.LoanApplication, len(s.applications)),
		repayments:   make(map[string]domain.LoanRepayment, len(s.repayments)),
		plans:        make(map[string]domain.SavingsPlan, len(s.plans)),
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	for k, v := range s.numberIndex {
		snap.numberIndex[k] = v
	}
	for k, v := range s.applications {
		snap.applications[k] = v
	}
	for k, v := range s.repayments {
		snap.repayments[k] = v
	}
	for k, v := range s.plans {
		snap.plans[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.accounts = snap.accounts
	s.numberIndex = snap.numberIndex
	s.transactions = snap.transactions
	s.applications = snap.applications
	s.repayments = snap.repayments
	s.plans = snap.plans
}

// WithinTx runs fn under the store mutex. On error the pre-tx snapshot is
// restored, so no partial mutation survives. Nested calls flatten into
// the outer unit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// ── Accounts ──

func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	defer s.lock(ctx)()
	if _, exists := s.numberIndex[account.AccountNumber]; exists {
		return &domain.ErrValidation{Field: "account_number", Message: "already taken"}
	}
	s.accounts[account.ID] = *account
	s.numberIndex[account.AccountNumber] = account.ID
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	defer s.lock(ctx)()
	return s.getAccountLocked(id)
}

func (s *Store) getAccountLocked(id string) (*domain.Account, error) {
	a, ok := s.accounts[id]
	if !ok || a.DeletedAt != nil {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	cp := a
	return &cp, nil
}

func (s *Store) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	defer s.lock(ctx)()
	id, ok := s.numberIndex[number]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: number}
	}
	return s.getAccountLocked(id)
}

func (s *Store) ListAccountsByUser(ctx context.Context, userID string) ([]domain.Account, error) {
	defer s.lock(ctx)()
	var out []domain.Account
	for _, a := range s.accounts {
		if a.UserID == userID && a.DeletedAt == nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateAccount(ctx context.Context, account *domain.Account) error {
	defer s.lock(ctx)()
	if _, ok := s.accounts[account.ID]; !ok {
		return &domain.ErrNotFound{Resource: "account", ID: account.ID}
	}
	account.UpdatedAt = time.Now().UTC()
	s.accounts[account.ID] = *account
	return nil
}

func (s *Store) ListAccrualCandidateAccounts(ctx context.Context, monthStart time.Time) ([]domain.Account, error) {
	defer s.lock(ctx)()
	var out []domain.Account
	for _, a := range s.accounts {
		if a.DeletedAt != nil || a.Type != domain.AccountTypeSavings || a.Status != domain.AccountStatusActive {
			continue
		}
		if !a.InterestRate.IsPositive() {
			continue
		}
		if a.LastInterestCreditedAt != nil && !a.LastInterestCreditedAt.Before(monthStart) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ── Transactions ──

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	defer s.lock(ctx)()
	s.transactions = append(s.transactions, *tx)
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string, page, pageSize int) ([]domain.Transaction, error) {
	defer s.lock(ctx)()
	var all []domain.Transaction
	for _, tx := range s.transactions {
		if tx.AccountID == accountID {
			all = append(all, tx)
		}
	}
	// Newest first.
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []domain.Transaction{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (s *Store) SumDebitsSince(ctx context.Context, accountID string, since time.Time) (domain.Money, error) {
	defer s.lock(ctx)()
	total := domain.ZeroMoney()
	for _, tx := range s.transactions {
		if tx.AccountID != accountID || tx.CreatedAt.Before(since) {
			continue
		}
		if tx.Type == domain.TransactionWithdrawal || tx.Type == domain.TransactionTransferOut {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

// ── Loans ──

func (s *Store) CreateLoanApplication(ctx context.Context, app *domain.LoanApplication) error {
	defer s.lock(ctx)()
	s.applications[app.ID] = *app
	return nil
}

func (s *Store) GetLoanApplication(ctx context.Context, id string) (*domain.LoanApplication, error) {
	defer s.lock(ctx)()
	app, ok := s.applications[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "loan application", ID: id}
	}
	cp := app
	return &cp, nil
}

func (s *Store) ListLoanApplicationsByUser(ctx context.Context, userID string) ([]domain.LoanApplication, error) {
	defer s.lock(ctx)()
	var out []domain.LoanApplication
	for _, app := range s.applications {
		if app.UserID == userID {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateLoanApplication(ctx context.Context, app *domain.LoanApplication) error {
	defer s.lock(ctx)()
	if _, ok := s.applications[app.ID]; !ok {
		return &domain.ErrNotFound{Resource: "loan application", ID: app.ID}
	}
	app.UpdatedAt = time.Now().UTC()
	s.applications[app.ID] = *app
	return nil
}

func (s *Store) CreateLoanRepayments(ctx context.Context, repayments []domain.LoanRepayment) error {
	defer s.lock(ctx)()
	for _, r := range repayments {
		s.repayments[r.ID] = r
	}
	return nil
}

func (s *Store) GetLoanRepayment(ctx context.Context, id string) (*domain.LoanRepayment, error) {
	defer s.lock(ctx)()
	r, ok := s.repayments[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "loan repayment", ID: id}
	}
	cp := r
	return &cp, nil
}

func (s *Store) ListLoanRepayments(ctx context.Context, applicationID string) ([]domain.LoanRepayment, error) {
	defer s.lock(ctx)()
	var out []domain.LoanRepayment
	for _, r := range s.repayments {
		if r.LoanApplicationID == applicationID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstallmentNumber < out[j].InstallmentNumber })
	return out, nil
}

func (s *Store) UpdateLoanRepayment(ctx context.Context, repayment *domain.LoanRepayment) error {
	defer s.lock(ctx)()
	if _, ok := s.repayments[repayment.ID]; !ok {
		return &domain.ErrNotFound{Resource: "loan repayment", ID: repayment.ID}
	}
	repayment.UpdatedAt = time.Now().UTC()
	s.repayments[repayment.ID] = *repayment
	return nil
}

// ── Savings plans ──

func (s *Store) CreateSavingsPlan(ctx context.Context, plan *domain.SavingsPlan) error {
	defer s.lock(ctx)()
	s.plans[plan.ID] = *plan
	return nil
}

func (s *Store) GetSavingsPlan(ctx context.Context, id string) (*domain.SavingsPlan, error) {
	defer s.lock(ctx)()
	p, ok := s.plans[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "savings plan", ID: id}
	}
	cp := p
	return &cp, nil
}

func (s *Store) ListSavingsPlansByUser(ctx context.Context, userID string) ([]domain.SavingsPlan, error) {
	defer s.lock(ctx)()
	var out []domain.SavingsPlan
	for _, p := range s.plans {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateSavingsPlan(ctx context.Context, plan *domain.SavingsPlan) error {
	defer s.lock(ctx)()
	if _, ok := s.plans[plan.ID]; !ok {
		return &domain.ErrNotFound{Resource: "savings plan", ID: plan.ID}
	}
	plan.UpdatedAt = time.Now().UTC()
	s.plans[plan.ID] = *plan
	return nil
}

func (s *Store) ListMaturedPlans(ctx context.Context, asOf time.Time) ([]domain.SavingsPlan, error) {
	defer s.lock(ctx)()
	var out []domain.SavingsPlan
	for _, p := range s.plans {
		if p.Status == domain.PlanActive && !p.EndDate.After(asOf) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListActivePlansByType(ctx context.Context, planType domain.SavingsPlanType) ([]domain.SavingsPlan, error) {
	defer s.lock(ctx)()
	var out []domain.SavingsPlan
	for _, p := range s.plans {
		if p.Status == domain.PlanActive && p.PlanType == planType {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
