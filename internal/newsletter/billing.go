package newsletter

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreatePlan creates a billing plan.
func (s *Store) CreatePlan(ctx context.Context, plan *Plan) error {
	plan.ID = uuid.New()
	plan.CreatedAt = time.Now()
	plan.UpdatedAt = plan.CreatedAt
	if plan.Status == "" {
		plan.Status = StatusActive
	}
	if plan.BillingInterval == "" {
		plan.BillingInterval = "month"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plans (id, name, description, price_cents, billing_interval, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		plan.ID, plan.Name, plan.Description, plan.PriceCents, plan.BillingInterval,
		plan.Status, plan.CreatedAt, plan.UpdatedAt)
	return err
}

// GetPlan retrieves a plan by ID.
func (s *Store) GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error) {
	plan := &Plan{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, price_cents, billing_interval, status, created_at, updated_at
		FROM plans WHERE id = $1`, id).Scan(
		&plan.ID, &plan.Name, &plan.Description, &plan.PriceCents, &plan.BillingInterval,
		&plan.Status, &plan.CreatedAt, &plan.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return plan, err
}

// GetPlans retrieves all plans ordered by price.
func (s *Store) GetPlans(ctx context.Context) ([]*Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, price_cents, billing_interval, status, created_at, updated_at
		FROM plans ORDER BY price_cents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		plan := &Plan{}
		if err := rows.Scan(&plan.ID, &plan.Name, &plan.Description, &plan.PriceCents,
			&plan.BillingInterval, &plan.Status, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// UpdatePlan updates plan fields.
func (s *Store) UpdatePlan(ctx context.Context, plan *Plan) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE plans SET name = $1, description = $2, price_cents = $3, billing_interval = $4,
		status = $5, updated_at = NOW() WHERE id = $6`,
		plan.Name, plan.Description, plan.PriceCents, plan.BillingInterval, plan.Status, plan.ID)
	return err
}

// DeletePlan marks a plan inactive. Plans are never hard-deleted so past
// subscriptions keep a valid reference.
func (s *Store) DeletePlan(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE plans SET status = $1, updated_at = NOW() WHERE id = $2`, StatusInactive, id)
	return err
}

// CreateCoupon creates a discount coupon. Codes are stored uppercase.
func (s *Store) CreateCoupon(ctx context.Context, c *Coupon) error {
	c.ID = uuid.New()
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = StatusActive
	}
	if c.DiscountType == "" {
		c.DiscountType = DiscountPercent
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO coupons (id, code, discount_type, discount_value, max_redemptions, expires_at,
		status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Code, c.DiscountType, c.DiscountValue, c.MaxRedemptions, c.ExpiresAt,
		c.Status, c.CreatedAt, c.UpdatedAt)
	return err
}

// GetCoupons retrieves all coupons, newest first.
func (s *Store) GetCoupons(ctx context.Context) ([]*Coupon, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, discount_type, discount_value, max_redemptions, redeemed_count,
		expires_at, status, created_at, updated_at
		FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coupons []*Coupon
	for rows.Next() {
		c := &Coupon{}
		if err := rows.Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MaxRedemptions,
			&c.RedeemedCount, &c.ExpiresAt, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

// GetCoupon retrieves a coupon by ID.
func (s *Store) GetCoupon(ctx context.Context, id uuid.UUID) (*Coupon, error) {
	c := &Coupon{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, discount_type, discount_value, max_redemptions, redeemed_count,
		expires_at, status, created_at, updated_at
		FROM coupons WHERE id = $1`, id).Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MaxRedemptions,
		&c.RedeemedCount, &c.ExpiresAt, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// UpdateCoupon updates coupon fields.
func (s *Store) UpdateCoupon(ctx context.Context, c *Coupon) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE coupons SET discount_type = $1, discount_value = $2, max_redemptions = $3,
		expires_at = $4, status = $5, updated_at = NOW() WHERE id = $6`,
		c.DiscountType, c.DiscountValue, c.MaxRedemptions, c.ExpiresAt, c.Status, c.ID)
	return err
}

// DeleteCoupon removes a coupon.
func (s *Store) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	return err
}
