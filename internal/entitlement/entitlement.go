// Package entitlement answers "can this account use feature X right now"
// from nothing but the account's subscription row and the clock.
package entitlement

import (
	"log/slog"
	"time"

	"cero/internal/model"
	"cero/internal/store"
)

// Feature identifiers.
type Feature string

const (
	FeatureBasicReports      Feature = "basic_reports"
	FeatureAdvancedReports   Feature = "advanced_reports"
	FeatureExtendedDateRange Feature = "extended_date_range"
	FeatureCSVExport         Feature = "csv_export"
	FeatureReportGrouping    Feature = "report_grouping"
	FeatureAPIAccess         Feature = "api_access"
	FeaturePrioritySupport   Feature = "priority_support"
)

// FeatureName returns a display name for a feature.
func FeatureName(f Feature) string {
	switch f {
	case FeatureBasicReports:
		return "Basic Reports"
	case FeatureAdvancedReports:
		return "Advanced Reports"
	case FeatureExtendedDateRange:
		return "Extended Date Range"
	case FeatureCSVExport:
		return "CSV Export"
	case FeatureReportGrouping:
		return "Report Grouping"
	case FeatureAPIAccess:
		return "API Access"
	case FeaturePrioritySupport:
		return "Priority Support"
	default:
		return "Unknown"
	}
}

// PlanHasFeature is the static plan to feature mapping. It is total: every
// plan decides every feature. Note the deliberate asymmetry: pro has
// everything except priority support, which only enterprise includes.
func PlanHasFeature(plan model.Plan, f Feature) bool {
	switch plan {
	case model.PlanFree:
		return f == FeatureBasicReports
	case model.PlanPro:
		return f != FeaturePrioritySupport
	case model.PlanEnterprise:
		return true
	default:
		return false
	}
}

// IsValid reports whether the subscription grants access at the given
// instant. Active subscriptions are valid inside their [valid_from,
// valid_until] window. Lapsed subscriptions (grace_period, expired,
// cancelled) remain valid while grace_until is set and not yet passed;
// grace is never revoked by a job, it simply stops being true. Pure
// function of sub and now.
func IsValid(sub *model.Subscription, now time.Time) bool {
	if sub == nil {
		return false
	}
	switch sub.Status {
	case model.StatusActive:
		return !now.Before(sub.ValidFrom) && !now.After(sub.ValidUntil)
	case model.StatusGracePeriod, model.StatusExpired, model.StatusCancelled:
		return sub.GraceUntil != nil && !now.After(*sub.GraceUntil)
	default:
		return false
	}
}

// Engine evaluates entitlements against stored subscriptions. It fails
// closed: a missing or invalid subscription grants the free tier only.
type Engine struct {
	subs   *store.SubscriptionStore
	logger *slog.Logger
}

func NewEngine(subs *store.SubscriptionStore, logger *slog.Logger) *Engine {
	return &Engine{subs: subs, logger: logger}
}

// effectivePlan resolves the plan currently in force for the account.
func (e *Engine) effectivePlan(accountID int64) model.Plan {
	sub, err := e.subs.GetByAccountID(accountID)
	if err != nil {
		e.logger.Error("subscription lookup failed", "account_id", accountID, "error", err)
		return model.PlanFree
	}
	if sub == nil {
		e.logger.Warn("no subscription for account", "account_id", accountID)
		return model.PlanFree
	}
	if !IsValid(sub, time.Now().UTC()) {
		e.logger.Info("subscription not valid", "account_id", accountID, "status", sub.Status)
		return model.PlanFree
	}
	return sub.Plan
}

// HasFeature reports whether the account may use the feature right now.
func (e *Engine) HasFeature(accountID int64, f Feature) bool {
	return PlanHasFeature(e.effectivePlan(accountID), f)
}

// MaxReportDays returns the widest report date range the account's plan
// allows: 7 days on free, 90 on pro, 365 on enterprise.
func (e *Engine) MaxReportDays(accountID int64) int {
	switch e.effectivePlan(accountID) {
	case model.PlanPro:
		return 90
	case model.PlanEnterprise:
		return 365
	default:
		return 7
	}
}
