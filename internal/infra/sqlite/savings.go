package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"
)

const planColumns = `id, user_id, source_account_id, plan_type, principal, monthly_amount,
	interest_rate, term_months, start_date, end_date, status, interest_credited_total,
	total_deposited, next_due_date, last_interest_credited_at, created_at, updated_at`

func (s *Store) CreateSavingsPlan(ctx context.Context, p *domain.SavingsPlan) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO savings_plans (`+planColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.SourceAccountID, p.PlanType, p.Principal, p.MonthlyAmount,
		p.InterestRate, p.TermMonths, p.StartDate.UTC(), p.EndDate.UTC(), p.Status,
		p.InterestCreditedTotal, p.TotalDeposited, nullTime(p.NextDueDate),
		nullTime(p.LastInterestCreditedAt), p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return &domain.ErrStorage{Op: "create savings plan", Err: err}
	}
	return nil
}

func scanPlan(row interface{ Scan(dest ...any) error }) (*domain.SavingsPlan, error) {
	var (
		p          domain.SavingsPlan
		nextDue    sql.NullTime
		lastCredit sql.NullTime
	)
	err := row.Scan(&p.ID, &p.UserID, &p.SourceAccountID, &p.PlanType, &p.Principal,
		&p.MonthlyAmount, &p.InterestRate, &p.TermMonths, &p.StartDate, &p.EndDate,
		&p.Status, &p.InterestCreditedTotal, &p.TotalDeposited, &nextDue, &lastCredit,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.NextDueDate = fromNullTime(nextDue)
	p.LastInterestCreditedAt = fromNullTime(lastCredit)
	return &p, nil
}

func (s *Store) GetSavingsPlan(ctx context.Context, id string) (*domain.SavingsPlan, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM savings_plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "savings plan", ID: id}
	}
	if err != nil {
		return nil, &domain.ErrStorage{Op: "get savings plan", Err: err}
	}
	return p, nil
}

func (s *Store) listPlans(ctx context.Context, query string, args ...any) ([]domain.SavingsPlan, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list savings plans", Err: err}
	}
	defer rows.Close()

	var out []domain.SavingsPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, &domain.ErrStorage{Op: "list savings plans", Err: err}
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorage{Op: "list savings plans", Err: err}
	}
	return out, nil
}

func (s *Store) ListSavingsPlansByUser(ctx context.Context, userID string) ([]domain.SavingsPlan, error) {
	return s.listPlans(ctx,
		`SELECT `+planColumns+` FROM savings_plans WHERE user_id = ? ORDER BY created_at`, userID)
}

func (s *Store) ListMaturedPlans(ctx context.Context, asOf time.Time) ([]domain.SavingsPlan, error) {
	return s.listPlans(ctx,
		`SELECT `+planColumns+` FROM savings_plans
		WHERE status = ? AND end_date <= ? ORDER BY id`,
		domain.PlanActive, asOf.UTC())
}

func (s *Store) ListActivePlansByType(ctx context.Context, planType domain.SavingsPlanType) ([]domain.SavingsPlan, error) {
	return s.listPlans(ctx,
		`SELECT `+planColumns+` FROM savings_plans
		WHERE status = ? AND plan_type = ? ORDER BY id`,
		domain.PlanActive, planType)
}

func (s *Store) UpdateSavingsPlan(ctx context.Context, p *domain.SavingsPlan) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE savings_plans SET status = ?, interest_credited_total = ?, total_deposited = ?,
			next_due_date = ?, last_interest_credited_at = ?, updated_at = ?
		WHERE id = ?`,
		p.Status, p.InterestCreditedTotal, p.TotalDeposited, nullTime(p.NextDueDate),
		nullTime(p.LastInterestCreditedAt), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return &domain.ErrStorage{Op: "update savings plan", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "savings plan", ID: p.ID}
	}
	return nil
}
