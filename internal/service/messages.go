package service

import (
	"fmt"

	"github.com/set-night/paygate/internal/domain"
)

const (
	inviteUnavailableNote = "(Unable to create invite link — make sure bot is admin in the channel)"
	expiryRevokedText     = "Your subscription has expired and access was removed."
	expiryText            = "Your subscription has expired."
)

const expiryLayout = "2006-01-02 15:04 UTC"

// paymentReceivedText is the notification sent once an order is paid. An empty invite
// means the grant failed and the subscriber gets the degraded note instead.
func paymentReceivedText(o *domain.Order, invite string) string {
	expiry := "-"
	if o.ExpiryAt != nil {
		expiry = o.ExpiryAt.UTC().Format(expiryLayout)
	}
	text := fmt.Sprintf("✅ Payment received! Your order %s is active until %s. Here is your join link.", o.ID, expiry)
	if invite == "" {
		return text + "\n" + inviteUnavailableNote
	}
	return text + "\n" + invite
}

func expiryNoticeText(revoked bool) string {
	if revoked {
		return expiryRevokedText
	}
	return expiryText
}
