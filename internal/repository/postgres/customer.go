package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flexprice/autobill/internal/domain/customer"
	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/postgres"
	"github.com/flexprice/autobill/internal/types"
	"github.com/lib/pq"
)

const customerColumns = `id, name, email, phone, national_id, address, subscription_start,
	payment_day, total_amount, payment_method, paid_periods, created_at, updated_at`

type customerRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewCustomerRepository(db postgres.IClient, logger *logger.Logger) customer.Repository {
	return &customerRepository{db: db, logger: logger}
}

func (r *customerRepository) Create(ctx context.Context, c *customer.Customer) error {
	query := `
		INSERT INTO customers (
			name, email, phone, national_id, address, subscription_start,
			payment_day, total_amount, payment_method, paid_periods, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		) RETURNING id`

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.PaidPeriods = c.PaidPeriods.Normalize()

	r.logger.Debugw("creating customer", "name", c.Name)

	err := r.db.GetQuerier(ctx).GetContext(ctx, &c.ID, query,
		c.Name, c.Email, c.Phone, c.NationalID, c.Address, c.SubscriptionStart,
		c.PaymentDay, c.TotalAmount, c.PaymentMethod, c.PaidPeriods, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create customer").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id int64) (*customer.Customer, error) {
	return r.get(ctx, id, false)
}

func (r *customerRepository) GetForUpdate(ctx context.Context, id int64) (*customer.Customer, error) {
	return r.get(ctx, id, true)
}

func (r *customerRepository) get(ctx context.Context, id int64, forUpdate bool) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var c customer.Customer
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Customer %d not found", id).
				WithReportableDetails(map[string]any{
					"customer_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get customer").
			Mark(ierr.ErrDatabase)
	}
	return &c, nil
}

func (r *customerRepository) List(ctx context.Context, filter *types.CustomerFilter) ([]*customer.Customer, error) {
	if filter == nil {
		filter = types.NewCustomerFilter()
	}

	var (
		conditions []string
		args       []interface{}
	)
	if len(filter.CustomerIDs) > 0 {
		args = append(args, pq.Array(filter.CustomerIDs))
		conditions = append(conditions, "id = ANY($1)")
	}
	if filter.SubscribedOnly {
		conditions = append(conditions, "subscription_start IS NOT NULL AND payment_day > 0")
	}

	query := `SELECT ` + customerColumns + ` FROM customers`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY id`

	var customers []*customer.Customer
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &customers, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list customers").
			Mark(ierr.ErrDatabase)
	}
	return customers, nil
}

func (r *customerRepository) UpdatePaidPeriods(ctx context.Context, id int64, periods types.PaidPeriods) error {
	query := `UPDATE customers SET paid_periods = $1, updated_at = $2 WHERE id = $3`

	r.logger.Debugw("updating paid periods", "customer_id", id, "paid_periods", periods)

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, periods.Normalize(), time.Now().UTC(), id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update paid periods").
			Mark(ierr.ErrDatabase)
	}
	return requireAffected(result, "customer", id)
}

func (r *customerRepository) UpdatePaymentDay(ctx context.Context, id int64, day int) error {
	query := `UPDATE customers SET payment_day = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, day, time.Now().UTC(), id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update payment day").
			Mark(ierr.ErrDatabase)
	}
	return requireAffected(result, "customer", id)
}

// requireAffected turns a zero row update into a not found error
func requireAffected(result sql.Result, entity string, id any) error {
	n, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if n == 0 {
		return ierr.NewError(entity+" not found").
			WithHintf("No %s with id %v", entity, id).
			WithReportableDetails(map[string]any{
				"id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

// uniqueViolation unwraps a postgres unique_violation (23505)
func uniqueViolation(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr, true
	}
	return nil, false
}
