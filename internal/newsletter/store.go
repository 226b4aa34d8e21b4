package newsletter

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store provides database operations for subscribers, lists, signup pages,
// and billing entities.
type Store struct {
	db *sql.DB
}

// NewStore creates a new newsletter store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation. Handlers map these to 409 responses.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// CreateSubscriber inserts a new pending subscriber. Email is normalized
// and confirm/unsubscribe tokens are generated here.
func (s *Store) CreateSubscriber(ctx context.Context, sub *Subscriber) error {
	sub.ID = uuid.New()
	sub.Email = NormalizeEmail(sub.Email)
	sub.EmailHash = HashEmail(sub.Email)
	sub.ConfirmToken = NewToken()
	sub.UnsubscribeToken = NewToken()
	sub.Status = SubscriberPending
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt

	query := `INSERT INTO subscribers (id, email, email_hash, first_name, status, confirm_token,
		unsubscribe_token, referred_by, source, ip_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.db.ExecContext(ctx, query, sub.ID, sub.Email, sub.EmailHash, sub.FirstName,
		sub.Status, sub.ConfirmToken, sub.UnsubscribeToken, sub.ReferredBy, sub.Source,
		sub.IPAddress, sub.CreatedAt, sub.UpdatedAt)
	return err
}

const subscriberColumns = `id, email, first_name, status, confirm_token, unsubscribe_token,
	referral_code, referred_by, referral_count, source, confirmed_at, unsubscribed_at,
	created_at, updated_at`

func scanSubscriber(row *sql.Row) (*Subscriber, error) {
	sub := &Subscriber{}
	err := row.Scan(&sub.ID, &sub.Email, &sub.FirstName, &sub.Status, &sub.ConfirmToken,
		&sub.UnsubscribeToken, &sub.ReferralCode, &sub.ReferredBy, &sub.ReferralCount,
		&sub.Source, &sub.ConfirmedAt, &sub.UnsubscribedAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sub, err
}

// GetSubscriber retrieves a subscriber by ID.
func (s *Store) GetSubscriber(ctx context.Context, id uuid.UUID) (*Subscriber, error) {
	return scanSubscriber(s.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE id = $1`, id))
}

// GetSubscriberByEmail retrieves a subscriber by normalized email.
func (s *Store) GetSubscriberByEmail(ctx context.Context, email string) (*Subscriber, error) {
	return scanSubscriber(s.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE email = $1`, NormalizeEmail(email)))
}

// GetSubscriberByConfirmToken retrieves a subscriber by confirmation token.
func (s *Store) GetSubscriberByConfirmToken(ctx context.Context, token string) (*Subscriber, error) {
	return scanSubscriber(s.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE confirm_token = $1`, token))
}

// GetSubscriberByReferralCode retrieves a subscriber by referral code.
func (s *Store) GetSubscriberByReferralCode(ctx context.Context, code string) (*Subscriber, error) {
	return scanSubscriber(s.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE referral_code = $1`, code))
}

// ActivateSubscriber marks a pending subscriber active and assigns its
// referral code. The status guard in the WHERE clause makes this idempotent:
// it returns false when the subscriber was not pending, and no second
// activation ever happens under concurrent confirmations.
func (s *Store) ActivateSubscriber(ctx context.Context, id uuid.UUID, referralCode string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscribers SET status = $1, referral_code = $2, confirmed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		SubscriberActive, referralCode, id, SubscriberPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RefreshConfirmToken issues a new confirmation token for a pending
// subscriber who signed up again before confirming.
func (s *Store) RefreshConfirmToken(ctx context.Context, id uuid.UUID) (string, error) {
	token := NewToken()
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscribers SET confirm_token = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		token, id, SubscriberPending)
	return token, err
}

// UnsubscribeByToken marks the matching subscriber unsubscribed.
// Returns the subscriber, or nil if the token is unknown.
func (s *Store) UnsubscribeByToken(ctx context.Context, token string) (*Subscriber, error) {
	sub, err := scanSubscriber(s.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE unsubscribe_token = $1`, token))
	if err != nil || sub == nil {
		return sub, err
	}
	if sub.Status == SubscriberUnsubscribed {
		return sub, nil
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE subscribers SET status = $1, unsubscribed_at = NOW(), updated_at = NOW() WHERE id = $2`,
		SubscriberUnsubscribed, sub.ID)
	return sub, err
}

// ListSubscribers retrieves a page of subscribers with the total count.
func (s *Store) ListSubscribers(ctx context.Context, status string, limit, offset int) ([]*Subscriber, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscribers WHERE ($1 = '' OR status = $1)`, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, first_name, status, referral_code, referral_count, confirmed_at, created_at
		FROM subscribers WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var subs []*Subscriber
	for rows.Next() {
		sub := &Subscriber{}
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.FirstName, &sub.Status, &sub.ReferralCode,
			&sub.ReferralCount, &sub.ConfirmedAt, &sub.CreatedAt); err != nil {
			return nil, 0, err
		}
		subs = append(subs, sub)
	}
	return subs, total, rows.Err()
}

// CountActiveSubscribers returns the number of active subscribers,
// used to derive the A/B test ratio.
func (s *Store) CountActiveSubscribers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscribers WHERE status = $1`, SubscriberActive).Scan(&n)
	return n, err
}

// CreateList creates a new contact list.
func (s *Store) CreateList(ctx context.Context, list *List) error {
	list.ID = uuid.New()
	list.CreatedAt = time.Now()
	list.UpdatedAt = list.CreatedAt
	if list.Status == "" {
		list.Status = StatusActive
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contact_lists (id, name, description, is_default, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		list.ID, list.Name, list.Description, list.IsDefault, list.Status, list.CreatedAt, list.UpdatedAt)
	return err
}

// GetList retrieves a list by ID.
func (s *Store) GetList(ctx context.Context, id uuid.UUID) (*List, error) {
	list := &List{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, is_default, status, subscriber_count, created_at, updated_at
		FROM contact_lists WHERE id = $1`, id).Scan(
		&list.ID, &list.Name, &list.Description, &list.IsDefault, &list.Status,
		&list.SubscriberCount, &list.CreatedAt, &list.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return list, err
}

// GetLists retrieves all active lists.
func (s *Store) GetLists(ctx context.Context) ([]*List, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, is_default, status, subscriber_count, created_at, updated_at
		FROM contact_lists WHERE status = 'active' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lists []*List
	for rows.Next() {
		list := &List{}
		if err := rows.Scan(&list.ID, &list.Name, &list.Description, &list.IsDefault, &list.Status,
			&list.SubscriberCount, &list.CreatedAt, &list.UpdatedAt); err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return lists, rows.Err()
}

// DefaultLists retrieves the lists every confirmed subscriber is added to.
func (s *Store) DefaultLists(ctx context.Context) ([]*List, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, is_default, status, subscriber_count, created_at, updated_at
		FROM contact_lists WHERE status = 'active' AND is_default ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lists []*List
	for rows.Next() {
		list := &List{}
		if err := rows.Scan(&list.ID, &list.Name, &list.Description, &list.IsDefault, &list.Status,
			&list.SubscriberCount, &list.CreatedAt, &list.UpdatedAt); err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return lists, rows.Err()
}

// UpdateList updates list metadata.
func (s *Store) UpdateList(ctx context.Context, list *List) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE contact_lists SET name = $1, description = $2, is_default = $3, status = $4, updated_at = NOW()
		WHERE id = $5`,
		list.Name, list.Description, list.IsDefault, list.Status, list.ID)
	return err
}

// DeleteList soft-deletes a list by marking it inactive.
func (s *Store) DeleteList(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE contact_lists SET status = $1, updated_at = NOW() WHERE id = $2`, StatusInactive, id)
	return err
}

// AddToList puts a subscriber on a list. Repeated adds are a no-op; the
// subscriber counter only moves when a membership row was actually created.
func (s *Store) AddToList(ctx context.Context, listID, subscriberID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO list_memberships (list_id, subscriber_id) VALUES ($1, $2)
		ON CONFLICT (list_id, subscriber_id) DO NOTHING`, listID, subscriberID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE contact_lists SET subscriber_count = subscriber_count + 1, updated_at = NOW() WHERE id = $1`,
		listID)
	return err
}
