package newsletter

import (
	"time"

	"github.com/google/uuid"
)

// Subscriber status constants. A subscriber is created pending and becomes
// active exactly once, at confirmation.
const (
	SubscriberPending      = "pending"
	SubscriberActive       = "active"
	SubscriberUnsubscribed = "unsubscribed"
)

// Entity status constants shared across lists, pages, plans, and coupons.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Subscriber represents a newsletter subscriber.
//
// ReferredBy is set at signup and never changes. ReferralCode is assigned
// at confirmation and never changes. ReferralCount is only ever mutated by
// the confirmation flow, through an atomic increment in the store.
type Subscriber struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	EmailHash        string     `json:"-"`
	FirstName        string     `json:"first_name"`
	Status           string     `json:"status"`
	ConfirmToken     string     `json:"-"`
	UnsubscribeToken string     `json:"-"`
	ReferralCode     *string    `json:"referral_code,omitempty"`
	ReferredBy       *uuid.UUID `json:"referred_by,omitempty"`
	ReferralCount    int        `json:"referral_count"`
	Source           string     `json:"source,omitempty"`
	IPAddress        string     `json:"-"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	UnsubscribedAt   *time.Time `json:"unsubscribed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// List represents a contact list. Default lists receive every newly
// confirmed subscriber automatically.
type List struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	IsDefault       bool      `json:"is_default"`
	Status          string    `json:"status"`
	SubscriberCount int       `json:"subscriber_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SignupPage represents a hosted signup landing page.
type SignupPage struct {
	ID           uuid.UUID  `json:"id"`
	Slug         string     `json:"slug"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	HTMLContent  string     `json:"html_content"`
	HeroImageURL string     `json:"hero_image_url"`
	ListID       *uuid.UUID `json:"list_id,omitempty"`
	Status       string     `json:"status"`
	ViewCount    int        `json:"view_count"`
	SignupCount  int        `json:"signup_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Plan represents a paid subscription tier. Billing is records-only; no
// payment processor is wired here.
type Plan struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	PriceCents      int       `json:"price_cents"`
	BillingInterval string    `json:"billing_interval"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Coupon discount types.
const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

// Coupon represents a discount code for plans.
type Coupon struct {
	ID             uuid.UUID  `json:"id"`
	Code           string     `json:"code"`
	DiscountType   string     `json:"discount_type"`
	DiscountValue  int        `json:"discount_value"`
	MaxRedemptions int        `json:"max_redemptions"`
	RedeemedCount  int        `json:"redeemed_count"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PageAsset represents an uploaded signup page asset served from the CDN.
type PageAsset struct {
	ID           uuid.UUID  `json:"id"`
	PageID       *uuid.UUID `json:"page_id,omitempty"`
	Filename     string     `json:"filename"`
	ContentType  string     `json:"content_type"`
	OriginalURL  string     `json:"original_url"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	SizeBytes    int64      `json:"size_bytes"`
	CreatedAt    time.Time  `json:"created_at"`
}
