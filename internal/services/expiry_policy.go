package services

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/models"
)

// expiryDateFormats are the layouts document expiry dates arrive in.
var expiryDateFormats = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	time.RFC3339,
}

// ExpiryPolicy applies the document expiry rules: expired documents fail
// hard, documents expiring within the warning window get a non-blocking
// warning, unparseable dates are ignored.
type ExpiryPolicy struct {
	warningDays int
	logger      *logging.SafeLogger
	now         func() time.Time
}

// NewExpiryPolicy creates the policy with the configured warning window.
func NewExpiryPolicy(warningDays int) *ExpiryPolicy {
	return &ExpiryPolicy{
		warningDays: warningDays,
		logger:      logging.Logger.With(zap.String("service", "expiry_policy")),
		now:         time.Now,
	}
}

// Check evaluates the expiry date string. The returned ExpiryCheck carries
// the warning state; an expired document additionally returns
// models.ErrDocumentExpired.
func (p *ExpiryPolicy) Check(expiryDate string) (models.ExpiryCheck, error) {
	var check models.ExpiryCheck

	if expiryDate == "" {
		return check, nil
	}

	expiry, ok := parseExpiryDate(expiryDate)
	if !ok {
		p.logger.Debug("unparseable expiry date, skipping expiry check",
			zap.String("expiry_date", expiryDate))
		return check, nil
	}

	// Floor, not truncate: a document that expired hours ago is already a
	// negative day count.
	daysUntil := int(math.Floor(expiry.Sub(p.now()).Hours() / 24))
	check.DaysUntilExpiry = daysUntil

	if daysUntil < 0 {
		check.Expired = true
		return check, fmt.Errorf("%w: expired %d days ago", models.ErrDocumentExpired, -daysUntil)
	}

	if daysUntil < p.warningDays {
		check.ExpiringSoon = true
	}

	return check, nil
}

func parseExpiryDate(s string) (time.Time, bool) {
	for _, layout := range expiryDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
