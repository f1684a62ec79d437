package services

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

const referenceSuffixLength = 6

// Order numbers and ticket codes are retried this many times on a unique
// collision before giving up.
const maxReferenceAttempts = 3

// NewOrderNumber returns <PREFIX>-<unix millis>-<6 random>.
func NewOrderNumber(prefix string, now time.Time) string {
	return newReference(prefix, now)
}

// NewTicketCode returns <EVENT-SLUG>-<unix millis>-<6 random>.
func NewTicketCode(eventSlug string, now time.Time) string {
	return newReference(eventSlug, now)
}

func newReference(prefix string, now time.Time) string {
	prefix = strings.ToUpper(strings.Trim(strings.TrimSpace(prefix), "-"))
	if prefix == "" {
		prefix = "REF"
	}
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), rand.Text()[:referenceSuffixLength])
}
