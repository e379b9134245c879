// Package mail delivers magic-link emails. The SMTP sender speaks plain
// STARTTLS SMTP; the log sender backs local development where no relay
// is configured.
package mail

import "context"

// Sender delivers login and registration links to an email address.
type Sender interface {
	SendLoginLink(ctx context.Context, email, link string) error
	SendRegistrationLink(ctx context.Context, email, link string) error
}
