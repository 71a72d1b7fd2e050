package maildirs

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/nacl/box"

	mserrors "github.com/infodancer/maildirs/errors"
)

// SealAlgorithm names the construction used by SealingDeliveryAgent:
// an anonymous NaCl box (X25519, XSalsa20-Poly1305) with an ephemeral sender.
const SealAlgorithm = "nacl-box-anonymous"

// KeySize is the size of X25519 public and private keys.
const KeySize = 32

// SealInfo describes how a delivered message was sealed.
type SealInfo struct {
	Algorithm string
}

// KeyProvider looks up recipients' public keys.
type KeyProvider interface {
	// PublicKey returns the key for a mailbox address. A mailbox without a
	// key reports ErrKeyNotFound.
	PublicKey(ctx context.Context, mailbox string) ([]byte, error)
}

// SealingDeliveryAgent seals each message to its recipient's public key
// before passing it on. Recipients without a key receive the message as is.
type SealingDeliveryAgent struct {
	next DeliveryAgent
	keys KeyProvider
}

// NewSealingDeliveryAgent wraps next so that messages are sealed for every
// recipient keys has a public key for.
func NewSealingDeliveryAgent(next DeliveryAgent, keys KeyProvider) *SealingDeliveryAgent {
	return &SealingDeliveryAgent{next: next, keys: keys}
}

// Deliver implements DeliveryAgent. Recipients without keys share one
// plaintext delivery; each keyed recipient gets its own sealed copy.
func (a *SealingDeliveryAgent) Deliver(ctx context.Context, envelope Envelope, message io.Reader) error {
	if len(envelope.Recipients) == 0 {
		return mserrors.ErrNoRecipients
	}
	data, err := io.ReadAll(message)
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}

	type sealed struct {
		recipient string
		key       *[KeySize]byte
	}
	var (
		plain []string
		keyed []sealed
	)
	for _, rcpt := range envelope.Recipients {
		key, err := a.lookup(ctx, ParseRecipient(rcpt).Address)
		switch {
		case errors.Is(err, mserrors.ErrKeyNotFound):
			plain = append(plain, rcpt)
		case err != nil:
			return fmt.Errorf("key for %s: %w", rcpt, err)
		default:
			keyed = append(keyed, sealed{recipient: rcpt, key: key})
		}
	}

	if len(plain) > 0 {
		env := envelope
		env.Recipients = plain
		env.Sealed = nil
		if err := a.next.Deliver(ctx, env, bytes.NewReader(data)); err != nil {
			return err
		}
	}

	for _, s := range keyed {
		out, err := box.SealAnonymous(nil, data, s.key, rand.Reader)
		if err != nil {
			return fmt.Errorf("seal for %s: %w", s.recipient, err)
		}
		env := envelope
		env.Recipients = []string{s.recipient}
		env.Sealed = &SealInfo{Algorithm: SealAlgorithm}
		if err := a.next.Deliver(ctx, env, bytes.NewReader(out)); err != nil {
			return err
		}
		slog.Debug("delivered sealed message", slog.String("recipient", s.recipient))
	}
	return nil
}

func (a *SealingDeliveryAgent) lookup(ctx context.Context, mailbox string) (*[KeySize]byte, error) {
	raw, err := a.keys.PublicKey(ctx, mailbox)
	if err != nil {
		return nil, err
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("public key for %s is %d bytes", mailbox, len(raw))
	}
	var key [KeySize]byte
	copy(key[:], raw)
	return &key, nil
}

// OpenSealed recovers a message sealed by SealingDeliveryAgent.
func OpenSealed(sealed, publicKey, privateKey []byte) ([]byte, error) {
	if len(publicKey) != KeySize || len(privateKey) != KeySize {
		return nil, fmt.Errorf("open sealed message: keys must be %d bytes", KeySize)
	}
	var pub, priv [KeySize]byte
	copy(pub[:], publicKey)
	copy(priv[:], privateKey)
	out, ok := box.OpenAnonymous(nil, sealed, &pub, &priv)
	if !ok {
		return nil, errors.New("open sealed message: authentication failed")
	}
	return out, nil
}
