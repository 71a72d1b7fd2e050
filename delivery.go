package maildirs

import (
	"context"
	"io"
	"net"
	"strings"
	"time"
)

// DeliveryAgent handles message delivery to storage.
type DeliveryAgent interface {
	// Deliver stores a message for the specified recipients.
	// envelope contains sender and recipient information.
	// message is the raw RFC 5322 message content.
	Deliver(ctx context.Context, envelope Envelope, message io.Reader) error
}

// Envelope contains the message envelope information from the SMTP transaction.
type Envelope struct {
	// From is the MAIL FROM address (reverse-path).
	From string

	// Recipients contains the RCPT TO addresses (forward-paths).
	Recipients []string

	// ReceivedTime is when the message was received by the server.
	ReceivedTime time.Time

	// ClientIP is the IP address of the connecting client.
	ClientIP net.IP

	// ClientHostname is the hostname provided in EHLO/HELO.
	ClientHostname string

	// Sealed is set when the message body was sealed for its recipient.
	Sealed *SealInfo
}

// Recipient is a forward-path split into the mailbox address and the
// sub-address extension.
type Recipient struct {
	// Address is the mailbox with any extension removed.
	Address string

	// Extension is the text after the first '+' in the local part.
	Extension string
}

// ParseRecipient splits "user+ext@domain" into "user@domain" and "ext".
// Only the first '+' separates; the rest belongs to the extension.
func ParseRecipient(email string) Recipient {
	local, domain := email, ""
	if idx := strings.LastIndex(email, "@"); idx >= 0 {
		local, domain = email[:idx], email[idx:]
	}
	user, ext, _ := strings.Cut(local, "+")
	return Recipient{Address: user + domain, Extension: ext}
}
