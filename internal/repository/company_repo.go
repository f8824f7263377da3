package repository

import (
	"context"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
)

type LedgerEntryInput struct {
	CompanyID    int64
	Delta        int64
	Reason       string
	Reference    string
	BalanceAfter *int64
}

type CompanyRepository struct {
	db DBTX
}

func NewCompanyRepository(db DBTX) *CompanyRepository {
	return &CompanyRepository{db: db}
}

const companyColumns = `c.id, c.name, c.owner_user_id, c.credit_balance, c.created_at, c.updated_at`

func scanCompany(row interface{ Scan(dest ...any) error }) (*models.RecruiterCompany, error) {
	var company models.RecruiterCompany
	err := row.Scan(
		&company.ID,
		&company.Name,
		&company.OwnerUserID,
		&company.CreditBalance,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *CompanyRepository) GetByID(ctx context.Context, companyID int64) (*models.RecruiterCompany, error) {
	query := `SELECT ` + companyColumns + ` FROM recruiter_companies c WHERE c.id = $1`
	return scanCompany(r.db.QueryRow(ctx, query, companyID))
}

func (r *CompanyRepository) GetForMember(ctx context.Context, userID int64) (*models.RecruiterCompany, error) {
	query := `
		SELECT ` + companyColumns + `
		FROM recruiter_companies c
		JOIN company_members m ON m.company_id = c.id
		WHERE m.user_id = $1
	`
	return scanCompany(r.db.QueryRow(ctx, query, userID))
}

// DebitCredits only succeeds while the balance covers the amount. pgx.ErrNoRows means
// insufficient credits.
func (r *CompanyRepository) DebitCredits(
	ctx context.Context,
	companyID int64,
	amount int64,
) (*models.RecruiterCompany, error) {
	query := `
		UPDATE recruiter_companies c
		SET credit_balance = credit_balance - $2, updated_at = NOW()
		WHERE c.id = $1 AND c.credit_balance >= $2
		RETURNING ` + companyColumns
	return scanCompany(r.db.QueryRow(ctx, query, companyID, amount))
}

func (r *CompanyRepository) CreditCredits(
	ctx context.Context,
	companyID int64,
	amount int64,
) (*models.RecruiterCompany, error) {
	query := `
		UPDATE recruiter_companies c
		SET credit_balance = credit_balance + $2, updated_at = NOW()
		WHERE c.id = $1
		RETURNING ` + companyColumns
	return scanCompany(r.db.QueryRow(ctx, query, companyID, amount))
}

// InsertLedgerEntry reports false when an entry with the same reference already exists.
func (r *CompanyRepository) InsertLedgerEntry(ctx context.Context, input LedgerEntryInput) (bool, error) {
	query := `
		INSERT INTO credit_ledger (company_id, delta, reason, reference, balance_after)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (reference) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, input.CompanyID, input.Delta, input.Reason, input.Reference, input.BalanceAfter)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CompanyRepository) SetLedgerBalance(ctx context.Context, reference string, balanceAfter int64) error {
	_, err := r.db.Exec(ctx, `UPDATE credit_ledger SET balance_after = $2 WHERE reference = $1`, reference, balanceAfter)
	return err
}

func (r *CompanyRepository) ListLedger(
	ctx context.Context,
	companyID int64,
	limit int,
) ([]models.CreditLedgerEntry, error) {
	query := `
		SELECT id, company_id, delta, reason, reference, balance_after, created_at
		FROM credit_ledger
		WHERE company_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.CreditLedgerEntry, 0)
	for rows.Next() {
		var entry models.CreditLedgerEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.CompanyID,
			&entry.Delta,
			&entry.Reason,
			&entry.Reference,
			&entry.BalanceAfter,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
