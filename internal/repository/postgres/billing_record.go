package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flexprice/autobill/internal/domain/billingrecord"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/postgres"
	"github.com/flexprice/autobill/internal/types"
	"github.com/lib/pq"
)

const billingRecordColumns = `id, order_id, customer_id, customer_name, email, phone, national_id,
	address, amount, payment_method, period_number, due_date, status, is_automatic,
	COALESCE(idempotency_key, '') AS idempotency_key, created_at, updated_at`

type billingRecordRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewBillingRecordRepository(db postgres.IClient, logger *logger.Logger) billingrecord.Repository {
	return &billingRecordRepository{db: db, logger: logger}
}

// CreateMany relies on the partial unique index over automatic
// (customer_id, period_number). A row conflicting on that index yields no
// RETURNING row and is left out of the result. Any other unique violation
// (id, order_id, idempotency_key) is returned as ErrAlreadyExists.
func (r *billingRecordRepository) CreateMany(ctx context.Context, records []*billingrecord.BillingRecord) ([]*billingrecord.BillingRecord, error) {
	query := `
		INSERT INTO billing_records (
			id, order_id, customer_id, customer_name, email, phone, national_id, address,
			amount, payment_method, period_number, due_date, status, is_automatic,
			idempotency_key, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULLIF($15, ''), $16, $17
		)
		ON CONFLICT (customer_id, period_number) WHERE is_automatic DO NOTHING
		RETURNING id`

	q := r.db.GetQuerier(ctx)
	created := make([]*billingrecord.BillingRecord, 0, len(records))
	for _, rec := range records {
		var id string
		err := q.GetContext(ctx, &id, query,
			rec.ID, rec.OrderID, rec.CustomerID, rec.CustomerName, rec.Email, rec.Phone,
			rec.NationalID, rec.Address, rec.Amount, rec.PaymentMethod, rec.PeriodNumber,
			rec.DueDate, rec.Status, rec.IsAutomatic, rec.IdempotencyKey, rec.CreatedAt, rec.UpdatedAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Infow("billing record already exists, skipping",
				"customer_id", rec.CustomerID,
				"period_number", rec.PeriodNumber,
				"order_id", rec.OrderID,
			)
			continue
		}
		if pqErr, ok := uniqueViolation(err); ok {
			return nil, ierr.WithError(err).
				WithHintf("Billing record %s already exists", rec.OrderID).
				WithReportableDetails(map[string]any{
					"order_id":   rec.OrderID,
					"constraint": pqErr.Constraint,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to create billing record").
				WithReportableDetails(map[string]any{
					"customer_id":   rec.CustomerID,
					"period_number": rec.PeriodNumber,
				}).
				Mark(ierr.ErrDatabase)
		}
		created = append(created, rec)
	}
	return created, nil
}

func (r *billingRecordRepository) GetByOrderID(ctx context.Context, orderID string) (*billingrecord.BillingRecord, error) {
	return r.getByOrderID(ctx, orderID, false)
}

func (r *billingRecordRepository) GetByOrderIDForUpdate(ctx context.Context, orderID string) (*billingrecord.BillingRecord, error) {
	return r.getByOrderID(ctx, orderID, true)
}

func (r *billingRecordRepository) getByOrderID(ctx context.Context, orderID string, forUpdate bool) (*billingrecord.BillingRecord, error) {
	query := `SELECT ` + billingRecordColumns + ` FROM billing_records WHERE order_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var rec billingrecord.BillingRecord
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &rec, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Billing record %s not found", orderID).
				WithReportableDetails(map[string]any{
					"order_id": orderID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get billing record").
			Mark(ierr.ErrDatabase)
	}
	return &rec, nil
}

func (r *billingRecordRepository) List(ctx context.Context, filter *types.BillingRecordFilter) ([]*billingrecord.BillingRecord, error) {
	if filter == nil {
		filter = types.NewBillingRecordFilter()
	}

	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.CustomerIDs) > 0 {
		conditions = append(conditions, "customer_id = ANY("+arg(pq.Array(filter.CustomerIDs))+")")
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, "status = ANY("+arg(pq.Array(statuses))+")")
	}
	if filter.PeriodNumber != nil {
		conditions = append(conditions, "period_number = "+arg(*filter.PeriodNumber))
	}
	if filter.IsAutomatic != nil {
		conditions = append(conditions, "is_automatic = "+arg(*filter.IsAutomatic))
	}

	query := `SELECT ` + billingRecordColumns + ` FROM billing_records`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY customer_id, period_number, created_at`

	var records []*billingrecord.BillingRecord
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &records, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list billing records").
			Mark(ierr.ErrDatabase)
	}
	return records, nil
}

func (r *billingRecordRepository) Update(ctx context.Context, rec *billingrecord.BillingRecord) error {
	query := `
		UPDATE billing_records SET
			customer_name = $1, email = $2, phone = $3, national_id = $4, address = $5,
			amount = $6, status = $7, updated_at = $8
		WHERE order_id = $9`

	rec.UpdatedAt = time.Now().UTC()
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		rec.CustomerName, rec.Email, rec.Phone, rec.NationalID, rec.Address,
		rec.Amount, rec.Status, rec.UpdatedAt, rec.OrderID,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update billing record").
			Mark(ierr.ErrDatabase)
	}
	return requireAffected(result, "billing record", rec.OrderID)
}

func (r *billingRecordRepository) Delete(ctx context.Context, orderID string) error {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, `DELETE FROM billing_records WHERE order_id = $1`, orderID)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete billing record").
			Mark(ierr.ErrDatabase)
	}
	return requireAffected(result, "billing record", orderID)
}
