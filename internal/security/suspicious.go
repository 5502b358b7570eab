package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/derbyfab/derby-tickets/model"
	"github.com/derbyfab/derby-tickets/params"
)

// botSignatures are matched case-insensitively as substrings of the
// user-agent header.
var botSignatures = []string{
	"bot", "crawler", "spider", "scraper", "curl", "wget",
	"python-requests", "automated", "script",
}

// IsSuspiciousUserAgent reports whether a user-agent string matches a
// known automation signature.
func IsSuspiciousUserAgent(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			return true
		}
	}
	return false
}

// DetectSuspiciousPatterns scans one request for automation signatures,
// excessive request rate, and inactive-account access. Each finding is
// returned as a human-readable indicator string.
func (m *Manager) DetectSuspiciousPatterns(ctx context.Context, clientIP, userAgent string, user *model.User) []string {
	var indicators []string

	ua := strings.ToLower(userAgent)
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			indicators = append(indicators, fmt.Sprintf("Automated tool detected: %s", sig))
		}
	}

	count, err := m.rates.IncrAttr(ctx, clientIP, "count", 1)
	if err != nil {
		m.reportDegraded(ctx, clientIP, "increment request rate counter", err)
	} else {
		if err := m.rates.Expire(ctx, clientIP, time.Now().Add(params.RateLimitWindow)); err != nil {
			m.reportDegraded(ctx, clientIP, "reset request rate window", err)
		}
		if count > params.RateLimitMaxRequests {
			indicators = append(indicators, fmt.Sprintf("High request rate: %d requests/minute", count))
		}
	}

	if user != nil && !user.IsActive {
		indicators = append(indicators, "Inactive user account access attempt")
	}
	return indicators
}

// TrackSuspiciousRequest accumulates flagged requests per IP over a one
// hour window. The POTENTIAL_ATTACK event fires once, on the request
// that crosses the threshold.
func (m *Manager) TrackSuspiciousRequest(ctx context.Context, clientIP string, indicators []string) {
	count, err := m.suspicious.IncrAttr(ctx, clientIP, "count", 1)
	if err != nil {
		m.reportDegraded(ctx, clientIP, "increment suspicious request counter", err)
		return
	}
	if err := m.suspicious.Expire(ctx, clientIP, time.Now().Add(params.SuspiciousCountWindow)); err != nil {
		m.reportDegraded(ctx, clientIP, "reset suspicious request window", err)
	}
	if count == int64(m.cfg.SuspiciousThreshold)+1 {
		m.recordEvent(ctx, &model.SecurityEvent{
			EventType:         model.EventTypePotentialAttack,
			Severity:          model.SeverityCritical,
			UsernameAttempted: clientIP,
			IPAddress:         clientIP,
			Description:       fmt.Sprintf("IP exceeded %d suspicious requests within an hour", m.cfg.SuspiciousThreshold),
			Metadata: map[string]any{
				"suspicious_count": count,
				"indicators":       indicators,
			},
		})
	}
}

// TrackErrorResponse accumulates server error responses per IP over a
// one hour window, emitting HIGH_ERROR_RATE once past the limit.
func (m *Manager) TrackErrorResponse(ctx context.Context, clientIP string) {
	count, err := m.errorRates.IncrAttr(ctx, clientIP, "count", 1)
	if err != nil {
		m.reportDegraded(ctx, clientIP, "increment error response counter", err)
		return
	}
	if err := m.errorRates.Expire(ctx, clientIP, time.Now().Add(params.ErrorRateWindow)); err != nil {
		m.reportDegraded(ctx, clientIP, "reset error response window", err)
	}
	if count == params.ErrorRateMaxErrors+1 {
		m.recordEvent(ctx, &model.SecurityEvent{
			EventType:         model.EventTypeHighErrorRate,
			Severity:          model.SeverityHigh,
			UsernameAttempted: clientIP,
			IPAddress:         clientIP,
			Description:       fmt.Sprintf("IP generated over %d error responses within an hour", params.ErrorRateMaxErrors),
			Metadata: map[string]any{
				"error_count": count,
			},
		})
	}
}
