package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"

	"gorm.io/gorm"
)

// ── Loan applications ──

func (s *Store) CreateLoanApplication(ctx context.Context, app *domain.LoanApplication) error {
	if err := s.conn(ctx).Create(applicationToRow(app)).Error; err != nil {
		return &domain.ErrStorage{Op: "create loan application", Err: err}
	}
	return nil
}

func (s *Store) GetLoanApplication(ctx context.Context, id string) (*domain.LoanApplication, error) {
	var row loanApplicationRow
	err := s.conn(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "loan application", ID: id}
	}
	if err != nil {
		return nil, &domain.ErrStorage{Op: "get loan application", Err: err}
	}
	return row.toDomain(), nil
}

func (s *Store) ListLoanApplicationsByUser(ctx context.Context, userID string) ([]domain.LoanApplication, error) {
	var rows []loanApplicationRow
	err := s.conn(ctx).Where("user_id = ?", userID).Order("created_at").Find(&rows).Error
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list loan applications", Err: err}
	}
	out := make([]domain.LoanApplication, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) UpdateLoanApplication(ctx context.Context, app *domain.LoanApplication) error {
	app.UpdatedAt = time.Now().UTC()
	res := s.conn(ctx).Model(&loanApplicationRow{}).Where("id = ?", app.ID).
		Select("*").Omit("id", "created_at").Updates(applicationToRow(app))
	if res.Error != nil {
		return &domain.ErrStorage{Op: "update loan application", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "loan application", ID: app.ID}
	}
	return nil
}

// ── Loan repayments ──

func (s *Store) CreateLoanRepayments(ctx context.Context, repayments []domain.LoanRepayment) error {
	rows := make([]loanRepaymentRow, 0, len(repayments))
	for i := range repayments {
		rows = append(rows, *repaymentToRow(&repayments[i]))
	}
	if err := s.conn(ctx).Create(&rows).Error; err != nil {
		return &domain.ErrStorage{Op: "create loan repayments", Err: err}
	}
	return nil
}

func (s *Store) GetLoanRepayment(ctx context.Context, id string) (*domain.LoanRepayment, error) {
	var row loanRepaymentRow
	err := s.conn(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "loan repayment", ID: id}
	}
	if err != nil {
		return nil, &domain.ErrStorage{Op: "get loan repayment", Err: err}
	}
	return row.toDomain(), nil
}

func (s *Store) ListLoanRepayments(ctx context.Context, applicationID string) ([]domain.LoanRepayment, error) {
	var rows []loanRepaymentRow
	err := s.conn(ctx).Where("loan_application_id = ?", applicationID).
		Order("installment_number").Find(&rows).Error
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list loan repayments", Err: err}
	}
	out := make([]domain.LoanRepayment, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) UpdateLoanRepayment(ctx context.Context, r *domain.LoanRepayment) error {
	r.UpdatedAt = time.Now().UTC()
	res := s.conn(ctx).Model(&loanRepaymentRow{}).Where("id = ?", r.ID).
		Select("*").Omit("id", "created_at").Updates(repaymentToRow(r))
	if res.Error != nil {
		return &domain.ErrStorage{Op: "update loan repayment", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "loan repayment", ID: r.ID}
	}
	return nil
}

// ── Savings plans ──

func (s *Store) CreateSavingsPlan(ctx context.Context, p *domain.SavingsPlan) error {
	if err := s.conn(ctx).Create(planToRow(p)).Error; err != nil {
		return &domain.ErrStorage{Op: "create savings plan", Err: err}
	}
	return nil
}

func (s *Store) GetSavingsPlan(ctx context.Context, id string) (*domain.SavingsPlan, error) {
	var row savingsPlanRow
	err := s.conn(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "savings plan", ID: id}
	}
	if err != nil {
		return nil, &domain.ErrStorage{Op: "get savings plan", Err: err}
	}
	return row.toDomain(), nil
}

func (s *Store) ListSavingsPlansByUser(ctx context.Context, userID string) ([]domain.SavingsPlan, error) {
	var rows []savingsPlanRow
	err := s.conn(ctx).Where("user_id = ?", userID).Order("created_at").Find(&rows).Error
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list savings plans", Err: err}
	}
	out := make([]domain.SavingsPlan, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) UpdateSavingsPlan(ctx context.Context, p *domain.SavingsPlan) error {
	p.UpdatedAt = time.Now().UTC()
	res := s.conn(ctx).Model(&savingsPlanRow{}).Where("id = ?", p.ID).
		Select("*").Omit("id", "created_at").Updates(planToRow(p))
	if res.Error != nil {
		return &domain.ErrStorage{Op: "update savings plan", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "savings plan", ID: p.ID}
	}
	return nil
}

func (s *Store) ListMaturedPlans(ctx context.Context, asOf time.Time) ([]domain.SavingsPlan, error) {
	var rows []savingsPlanRow
	err := s.conn(ctx).Where("status = ? AND end_date <= ?", domain.PlanActive, asOf.UTC()).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list matured plans", Err: err}
	}
	out := make([]domain.SavingsPlan, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) ListActivePlansByType(ctx context.Context, planType domain.SavingsPlanType) ([]domain.SavingsPlan, error) {
	var rows []savingsPlanRow
	err := s.conn(ctx).Where("status = ? AND plan_type = ?", domain.PlanActive, planType).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list active plans", Err: err}
	}
	out := make([]domain.SavingsPlan, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}
