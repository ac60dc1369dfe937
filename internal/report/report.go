// Package report generates usage reports within the limits the account's
// entitlements allow. The data itself is a deterministic placeholder; the
// gating around it is the real product.
package report

import (
	"fmt"
	"strconv"
	"time"

	"cero/internal/apperr"
	"cero/internal/entitlement"
)

type Grouping string

// GroupNone is the zero value, so Params with no grouping set never read
// as a grouping request.
const (
	GroupNone  Grouping = ""
	GroupDay   Grouping = "day"
	GroupWeek  Grouping = "week"
	GroupMonth Grouping = "month"
)

// ParseGrouping maps a form value to a grouping, defaulting to none.
func ParseGrouping(s string) Grouping {
	switch s {
	case "day":
		return GroupDay
	case "week":
		return GroupWeek
	case "month":
		return GroupMonth
	default:
		return GroupNone
	}
}

type Params struct {
	StartDate time.Time
	EndDate   time.Time
	ExportCSV bool
	Grouping  Grouping
}

type Row struct {
	Date         string
	UserCount    int
	SessionCount int
	AccountCount int
}

// Header is the column order for rendered and exported reports.
var Header = []string{"date", "user_count", "session_count", "account_count"}

// Values returns the row's fields in Header order.
func (r Row) Values() []string {
	return []string{
		r.Date,
		strconv.Itoa(r.UserCount),
		strconv.Itoa(r.SessionCount),
		strconv.Itoa(r.AccountCount),
	}
}

type Service struct {
	entitlements *entitlement.Engine
}

func NewService(entitlements *entitlement.Engine) *Service {
	return &Service{entitlements: entitlements}
}

// Validate checks the parameters against the account's entitlements:
// range within the plan's maximum, CSV export and grouping only when the
// plan includes them.
func (s *Service) Validate(accountID int64, p Params) error {
	days := rangeDays(p)
	if days <= 0 {
		return fmt.Errorf("%w: end date must be after start date", apperr.ErrInvalidInput)
	}

	maxDays := s.entitlements.MaxReportDays(accountID)
	if days > maxDays {
		return fmt.Errorf("%w: date range exceeds maximum of %d days for your plan", apperr.ErrForbidden, maxDays)
	}
	if p.ExportCSV && !s.entitlements.HasFeature(accountID, entitlement.FeatureCSVExport) {
		return fmt.Errorf("%w: CSV export not available on your plan", apperr.ErrForbidden)
	}
	if p.Grouping != GroupNone && !s.entitlements.HasFeature(accountID, entitlement.FeatureReportGrouping) {
		return fmt.Errorf("%w: report grouping not available on your plan", apperr.ErrForbidden)
	}
	return nil
}

// Generate produces one row per day in the range. Placeholder data: a
// real deployment would query usage tables here.
func (s *Service) Generate(accountID int64, p Params) ([]Row, error) {
	days := rangeDays(p)
	if days <= 0 {
		return nil, fmt.Errorf("%w: invalid date range", apperr.ErrInvalidInput)
	}

	rows := make([]Row, 0, days)
	date := p.StartDate
	for i := 0; i < days; i++ {
		rows = append(rows, Row{
			Date:         date.Format("2006-01-02"),
			UserCount:    1 + i%5,
			SessionCount: 5 + i%10,
			AccountCount: 1,
		})
		date = date.AddDate(0, 0, 1)
	}
	return rows, nil
}

func rangeDays(p Params) int {
	return int(p.EndDate.Sub(p.StartDate) / (24 * time.Hour))
}
