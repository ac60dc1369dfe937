package model

import (
	"fmt"
	"time"
)

// Account statuses.
const (
	AccountActive    = "active"
	AccountSuspended = "suspended"
	AccountCancelled = "cancelled"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type User struct {
	ID           int64      `json:"id"`
	AccountID    int64      `json:"account_id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Session struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Token          string    `json:"token"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
}

// Plan is a subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// ParsePlan maps a form value to a plan, defaulting to free.
func ParsePlan(s string) Plan {
	switch s {
	case "pro":
		return PlanPro
	case "enterprise":
		return PlanEnterprise
	default:
		return PlanFree
	}
}

// ValidPlan reports whether s names a known plan.
func ValidPlan(s string) bool {
	switch Plan(s) {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusActive      SubscriptionStatus = "active"
	StatusGracePeriod SubscriptionStatus = "grace_period"
	StatusExpired     SubscriptionStatus = "expired"
	StatusCancelled   SubscriptionStatus = "cancelled"
)

// ParseStatus maps a stored value to a status, defaulting to expired so an
// unrecognized row never grants access.
func ParseStatus(s string) SubscriptionStatus {
	switch s {
	case "active":
		return StatusActive
	case "grace_period":
		return StatusGracePeriod
	case "cancelled":
		return StatusCancelled
	default:
		return StatusExpired
	}
}

// ValidStatus reports whether s names a known subscription status.
func ValidStatus(s string) bool {
	switch SubscriptionStatus(s) {
	case StatusActive, StatusGracePeriod, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

type Subscription struct {
	ID         int64              `json:"id"`
	AccountID  int64              `json:"account_id"`
	Plan       Plan               `json:"plan"`
	Status     SubscriptionStatus `json:"status"`
	ValidFrom  time.Time          `json:"valid_from"`
	ValidUntil time.Time          `json:"valid_until"`
	GraceUntil *time.Time         `json:"grace_until"`
	Provider   string             `json:"provider"`
	ExternalID string             `json:"external_id"`
	Notes      string             `json:"notes"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// Billing event types.
const (
	EventSubscriptionUpdate = "subscription_update"
	EventPaymentReceived    = "payment_received"
)

// BillingEvent is one immutable row of the billing ledger. The previous
// plan/status are "none" when the account had no subscription yet.
type BillingEvent struct {
	ID                int64     `json:"id"`
	AccountID         int64     `json:"account_id"`
	EventType         string    `json:"event_type"`
	PreviousPlan      string    `json:"previous_plan"`
	NewPlan           string    `json:"new_plan"`
	PreviousStatus    string    `json:"previous_status"`
	NewStatus         string    `json:"new_status"`
	AmountCents       int64     `json:"amount_cents"`
	Currency          string    `json:"currency"`
	PaymentMethod     string    `json:"payment_method"`
	ExternalReference string    `json:"external_reference"`
	AdminUserID       *int64    `json:"admin_user_id"`
	Notes             string    `json:"notes"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// Amount formats the event amount in whole currency units for display,
// e.g. 4900 cents renders as "49.00".
func (e *BillingEvent) Amount() string {
	return fmt.Sprintf("%d.%02d", e.AmountCents/100, e.AmountCents%100)
}

// AuditEntry is one immutable row of the security audit log.
type AuditEntry struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"user_id"`
	AccountID  *int64    `json:"account_id"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail"`
	IPAddress  string    `json:"ip_address"`
	OccurredAt time.Time `json:"occurred_at"`
}
