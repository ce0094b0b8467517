package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"
)

const applicationColumns = `id, user_id, loan_type, amount, term_months, interest_rate,
	penalty_rate, purpose, status, account_id, decided_by, decided_at, rejection_reason,
	created_at, updated_at`

func (s *Store) CreateLoanApplication(ctx context.Context, app *domain.LoanApplication) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO loan_applications (`+applicationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.UserID, app.LoanType, app.Amount, app.TermMonths, app.InterestRate,
		app.PenaltyRatePercentPerMonth, app.Purpose, app.Status, app.AccountID,
		app.DecidedBy, nullTime(app.DecidedAt), app.RejectionReason,
		app.CreatedAt.UTC(), app.UpdatedAt.UTC(),
	)
	if err != nil {
		return &domain.ErrStorage{Op: "create loan application", Err: err}
	}
	return nil
}

func scanApplication(row interface{ Scan(dest ...any) error }) (*domain.LoanApplication, error) {
	var (
		app       domain.LoanApplication
		decidedAt sql.NullTime
	)
	err := row.Scan(&app.ID, &app.UserID, &app.LoanType, &app.Amount, &app.TermMonths,
		&app.InterestRate, &app.PenaltyRatePercentPerMonth, &app.Purpose, &app.Status,
		&app.AccountID, &app.DecidedBy, &decidedAt, &app.RejectionReason,
		&app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return nil, err
	}
	app.DecidedAt = fromNullTime(decidedAt)
	return &app, nil
}

func (s *Store) GetLoanApplication(ctx context.Context, id string) (*domain.LoanApplication, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM loan_applications WHERE id = ?`, id)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "loan application", ID: id}
	}
	if err != nil {
		return nil, &domain.ErrStorage{Op: "get loan application", Err: err}
	}
	return app, nil
}

func (s *Store) ListLoanApplicationsByUser(ctx context.Context, userID string) ([]domain.LoanApplication, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM loan_applications
		WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list loan applications", Err: err}
	}
	defer rows.Close()

	var out []domain.LoanApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, &domain.ErrStorage{Op: "list loan applications", Err: err}
		}
		out = append(out, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorage{Op: "list loan applications", Err: err}
	}
	return out, nil
}

func (s *Store) UpdateLoanApplication(ctx context.Context, app *domain.LoanApplication) error {
	app.UpdatedAt = time.Now().UTC()
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE loan_applications SET interest_rate = ?, penalty_rate = ?, status = ?,
			account_id = ?, decided_by = ?, decided_at = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ?`,
		app.InterestRate, app.PenaltyRatePercentPerMonth, app.Status, app.AccountID,
		app.DecidedBy, nullTime(app.DecidedAt), app.RejectionReason, app.UpdatedAt, app.ID,
	)
	if err != nil {
		return &domain.ErrStorage{Op: "update loan application", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "loan application", ID: app.ID}
	}
	return nil
}

const repaymentColumns = `id, loan_application_id, installment_number, due_date,
	principal_amount, interest_amount, penalty_amount, total_amount, status, paid_at,
	created_at, updated_at`

func (s *Store) CreateLoanRepayments(ctx context.Context, repayments []domain.LoanRepayment) error {
	for i := range repayments {
		r := &repayments[i]
		_, err := s.conn(ctx).ExecContext(ctx,
			`INSERT INTO loan_repayments (`+repaymentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.LoanApplicationID, r.InstallmentNumber, r.DueDate.UTC(),
			r.PrincipalAmount, r.InterestAmount, r.PenaltyAmount, r.TotalAmount,
			r.Status, nullTime(r.PaidAt), r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
		)
		if err != nil {
			return &domain.ErrStorage{Op: "create loan repayments", Err: err}
		}
	}
	return nil
}

func scanRepayment(row interface{ Scan(dest ...any) error }) (*domain.LoanRepayment, error) {
	var (
		r      domain.LoanRepayment
		paidAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.LoanApplicationID, &r.InstallmentNumber, &r.DueDate,
		&r.PrincipalAmount, &r.InterestAmount, &r.PenaltyAmount, &r.TotalAmount,
		&r.Status, &paidAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.PaidAt = fromNullTime(paidAt)
	return &r, nil
}

func (s *Store) GetLoanRepayment(ctx context.Context, id string) (*domain.LoanRepayment, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+repaymentColumns+` FROM loan_repayments WHERE id = ?`, id)
	r, err := scanRepayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "loan repayment", ID: id}
	}
	if err != nil {
		return nil, &domain.ErrStorage{Op: "get loan repayment", Err: err}
	}
	return r, nil
}

func (s *Store) ListLoanRepayments(ctx context.Context, applicationID string) ([]domain.LoanRepayment, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+repaymentColumns+` FROM loan_repayments
		WHERE loan_application_id = ? ORDER BY installment_number`, applicationID)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list loan repayments", Err: err}
	}
	defer rows.Close()

	var out []domain.LoanRepayment
	for rows.Next() {
		r, err := scanRepayment(rows)
		if err != nil {
			return nil, &domain.ErrStorage{Op: "list loan repayments", Err: err}
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorage{Op: "list loan repayments", Err: err}
	}
	return out, nil
}

func (s *Store) UpdateLoanRepayment(ctx context.Context, r *domain.LoanRepayment) error {
	r.UpdatedAt = time.Now().UTC()
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE loan_repayments SET penalty_amount = ?, total_amount = ?, status = ?,
			paid_at = ?, updated_at = ?
		WHERE id = ?`,
		r.PenaltyAmount, r.TotalAmount, r.Status, nullTime(r.PaidAt), r.UpdatedAt, r.ID,
	)
	if err != nil {
		return &domain.ErrStorage{Op: "update loan repayment", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "loan repayment", ID: r.ID}
	}
	return nil
}
