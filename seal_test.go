package maildirs

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"golang.org/x/crypto/nacl/box"

	mserrors "github.com/infodancer/maildirs/errors"
)

// recordingAgent keeps every delivery it receives.
type recordingAgent struct {
	got []recorded
}

type recorded struct {
	envelope Envelope
	body     []byte
}

func (r *recordingAgent) Deliver(ctx context.Context, envelope Envelope, message io.Reader) error {
	body, err := io.ReadAll(message)
	if err != nil {
		return err
	}
	r.got = append(r.got, recorded{envelope: envelope, body: body})
	return nil
}

// staticKeys serves public keys from a map keyed by mailbox address.
type staticKeys struct {
	keys map[string][]byte
	err  error
}

func (s *staticKeys) PublicKey(ctx context.Context, mailbox string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	key, ok := s.keys[mailbox]
	if !ok {
		return nil, mserrors.ErrKeyNotFound
	}
	return key, nil
}

func newKeyPair(t *testing.T) (pub, priv []byte) {
	t.Helper()
	p, k, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	return p[:], k[:]
}

func TestSealingDeliveryAgent_NoKeyPassesThrough(t *testing.T) {
	next := &recordingAgent{}
	agent := NewSealingDeliveryAgent(next, &staticKeys{keys: map[string][]byte{}})

	msg := []byte("Subject: hi\r\n\r\nplain")
	err := agent.Deliver(context.Background(), Envelope{
		From:       "sender@example.com",
		Recipients: []string{"plain@example.com"},
	}, bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if len(next.got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(next.got))
	}
	if next.got[0].envelope.Sealed != nil {
		t.Error("plaintext delivery should not carry seal info")
	}
	if !bytes.Equal(next.got[0].body, msg) {
		t.Errorf("body = %q, want %q", next.got[0].body, msg)
	}
}

func TestSealingDeliveryAgent_SealsForKeyedRecipient(t *testing.T) {
	pub, priv := newKeyPair(t)
	next := &recordingAgent{}
	agent := NewSealingDeliveryAgent(next, &staticKeys{keys: map[string][]byte{
		"alice@example.com": pub,
	}})

	msg := []byte("Subject: secret\r\n\r\nfor alice")
	// The key is looked up by address, so the extension does not matter.
	err := agent.Deliver(context.Background(), Envelope{
		Recipients: []string{"alice+work@example.com", "bob@example.com"},
	}, bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if len(next.got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(next.got))
	}

	var plain, sealed *recorded
	for i := range next.got {
		if next.got[i].envelope.Sealed == nil {
			plain = &next.got[i]
		} else {
			sealed = &next.got[i]
		}
	}
	if plain == nil || sealed == nil {
		t.Fatalf("expected one plain and one sealed delivery: %+v", next.got)
	}
	if got := plain.envelope.Recipients; len(got) != 1 || got[0] != "bob@example.com" {
		t.Errorf("plain recipients = %v", got)
	}
	if got := sealed.envelope.Recipients; len(got) != 1 || got[0] != "alice+work@example.com" {
		t.Errorf("sealed recipients = %v", got)
	}
	if sealed.envelope.Sealed.Algorithm != SealAlgorithm {
		t.Errorf("algorithm = %q, want %q", sealed.envelope.Sealed.Algorithm, SealAlgorithm)
	}
	if bytes.Contains(sealed.body, []byte("for alice")) {
		t.Error("sealed body contains plaintext")
	}

	opened, err := OpenSealed(sealed.body, pub, priv)
	if err != nil {
		t.Fatalf("OpenSealed failed: %v", err)
	}
	if !bytes.Equal(opened, msg) {
		t.Errorf("opened = %q, want %q", opened, msg)
	}
}

func TestSealingDeliveryAgent_KeyLookupFailure(t *testing.T) {
	lookupErr := errors.New("directory offline")
	next := &recordingAgent{}
	agent := NewSealingDeliveryAgent(next, &staticKeys{err: lookupErr})

	err := agent.Deliver(context.Background(), Envelope{
		Recipients: []string{"alice@example.com"},
	}, bytes.NewReader([]byte("x")))
	if !errors.Is(err, lookupErr) {
		t.Fatalf("expected lookup error, got %v", err)
	}
	if len(next.got) != 0 {
		t.Errorf("nothing should be delivered when a key lookup fails, got %d", len(next.got))
	}
}

func TestSealingDeliveryAgent_NoRecipients(t *testing.T) {
	agent := NewSealingDeliveryAgent(&recordingAgent{}, &staticKeys{})
	err := agent.Deliver(context.Background(), Envelope{}, bytes.NewReader(nil))
	if !errors.Is(err, mserrors.ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}

func TestOpenSealed_Invalid(t *testing.T) {
	pub, priv := newKeyPair(t)

	t.Run("short input", func(t *testing.T) {
		if _, err := OpenSealed([]byte("short"), pub, priv); err == nil {
			t.Error("expected error for short input")
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		otherPub, otherPriv := newKeyPair(t)
		var key [KeySize]byte
		copy(key[:], otherPub)
		sealed, err := box.SealAnonymous(nil, []byte("x"), &key, rand.Reader)
		if err != nil {
			t.Fatalf("SealAnonymous failed: %v", err)
		}
		if _, err := OpenSealed(sealed, pub, priv); err == nil {
			t.Error("expected error when opening with the wrong key")
		}
		if _, err := OpenSealed(sealed, otherPub, otherPriv); err != nil {
			t.Errorf("opening with the right key failed: %v", err)
		}
	})

	t.Run("bad key size", func(t *testing.T) {
		if _, err := OpenSealed(nil, pub[:5], priv); err == nil {
			t.Error("expected error for short key")
		}
	})
}
