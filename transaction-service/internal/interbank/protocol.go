// Package interbank speaks the bank-to-bank protocol: the security headers,
// the timestamp format and the outbound client used to reach counterpart
// banks.
package interbank

import (
	"fmt"
	"time"
)

// Headers carried on every interbank request.
const (
	HeaderBankCode    = "Bank-Code"
	HeaderTimestamp   = "X-Timestamp"
	HeaderRequestHash = "X-Request-Hash"
	HeaderSignature   = "X-Signature"
)

// Paths served by every participating bank.
const (
	DepositPath       = "/v1/interbank/deposits"
	AccountLookupPath = "/v1/interbank/accounts/"
)

// TimestampLayout is ISO-8601 local time without a zone suffix.
const TimestampLayout = "2006-01-02T15:04:05"

func FormatTimestamp(t time.Time) string {
	return t.In(time.Local).Format(TimestampLayout)
}

// ParseTimestamp accepts TimestampLayout in local time, or RFC 3339 from
// banks that do send a zone.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimestampLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t, nil
}

// WithinWindow reports whether ts lies within window of now in either direction.
func WithinWindow(ts, now time.Time, window time.Duration) bool {
	d := now.Sub(ts)
	if d < 0 {
		d = -d
	}
	return d <= window
}
