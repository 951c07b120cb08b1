package confidential

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cipherbet/cipherbet/internal/domain"
)

func newTestVault(t *testing.T) (*Engine, *Decryptor) {
	t.Helper()
	key := bytes.Repeat([]byte{0x22}, 32)
	e, err := NewEngine(key)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	dec, err := e.Decryptor(key)
	if err != nil {
		t.Fatalf("Decryptor: %v", err)
	}
	return e, dec
}

func mustReveal(t *testing.T, dec *Decryptor, ct domain.Ciphertext) uint64 {
	t.Helper()
	v, err := dec.Reveal(ct.Handle)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	return v
}

func TestNewEngineRejectsShortKey(t *testing.T) {
	if _, err := NewEngine([]byte("short")); err == nil {
		t.Fatal("NewEngine accepted a short master key")
	}
}

func TestVaultAlgebra(t *testing.T) {
	e, dec := newTestVault(t)

	a := e.Lift(40)
	b := e.Lift(2)

	sum, err := e.Add(a, b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := mustReveal(t, dec, sum); got != 42 {
		t.Errorf("Add(40, 2) = %d, want 42", got)
	}

	eq, err := e.Eq(a, e.Lift(40))
	if err != nil {
		t.Fatalf("Eq: %v", err)
	}
	if got := mustReveal(t, dec, eq); got != 1 {
		t.Errorf("Eq(40, 40) = %d, want 1", got)
	}
	neq, err := e.Eq(a, b)
	if err != nil {
		t.Fatalf("Eq: %v", err)
	}
	if got := mustReveal(t, dec, neq); got != 0 {
		t.Errorf("Eq(40, 2) = %d, want 0", got)
	}

	sel, err := e.Select(eq, a, b)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := mustReveal(t, dec, sel); got != 40 {
		t.Errorf("Select(1, 40, 2) = %d, want 40", got)
	}
	sel, err = e.Select(neq, a, b)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := mustReveal(t, dec, sel); got != 2 {
		t.Errorf("Select(0, 40, 2) = %d, want 2", got)
	}
}

func TestHandlesAreDistinct(t *testing.T) {
	e, _ := newTestVault(t)
	a := e.Lift(7)
	b := e.Lift(7)
	if a.Handle == b.Handle {
		t.Error("two lifts of the same value produced the same handle")
	}
}

func TestUnknownHandle(t *testing.T) {
	e, _ := newTestVault(t)
	var bogus domain.Ciphertext
	bogus.Handle[0] = 0xff
	if _, err := e.Add(e.Lift(1), bogus); !errors.Is(err, domain.ErrUnknownHandle) {
		t.Errorf("Add with foreign handle: got %v, want ErrUnknownHandle", err)
	}
}

func TestDecryptorRequiresMasterKey(t *testing.T) {
	e, _ := newTestVault(t)
	if _, err := e.Decryptor(bytes.Repeat([]byte{0x33}, 32)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Decryptor with wrong key: got %v, want ErrUnauthorized", err)
	}
}

func TestInputBinding(t *testing.T) {
	e, dec := newTestVault(t)
	bettor := common.HexToAddress("0x0000000000000000000000000000000000000a11")
	other := common.HexToAddress("0x0000000000000000000000000000000000000b0b")

	ct, proof, err := e.EncryptInput(domain.DirectionUp, bettor, 7)
	if err != nil {
		t.Fatalf("EncryptInput: %v", err)
	}
	if got := mustReveal(t, dec, ct); got != uint64(domain.DirectionUp) {
		t.Fatalf("encrypted direction = %d, want %d", got, domain.DirectionUp)
	}

	if err := e.VerifyInput(ct, bettor, 7, proof); err != nil {
		t.Errorf("VerifyInput: %v", err)
	}
	if err := e.VerifyInput(ct, other, 7, proof); !errors.Is(err, domain.ErrBadInput) {
		t.Errorf("verify for other bettor: got %v, want ErrBadInput", err)
	}
	if err := e.VerifyInput(ct, bettor, 8, proof); !errors.Is(err, domain.ErrBadInput) {
		t.Errorf("verify for other round: got %v, want ErrBadInput", err)
	}

	tampered := bytes.Clone(proof)
	tampered[0] ^= 0x01
	if err := e.VerifyInput(ct, bettor, 7, tampered); !errors.Is(err, domain.ErrBadInput) {
		t.Errorf("tampered proof: got %v, want ErrBadInput", err)
	}
}

func TestEncryptInputRejectsBadDirection(t *testing.T) {
	e, _ := newTestVault(t)
	bettor := common.HexToAddress("0x0000000000000000000000000000000000000a11")
	if _, _, err := e.EncryptInput(domain.Direction(3), bettor, 1); !errors.Is(err, domain.ErrBadInput) {
		t.Errorf("direction 3: got %v, want ErrBadInput", err)
	}
	if _, _, err := e.EncryptInput(domain.Direction(0), bettor, 1); !errors.Is(err, domain.ErrBadInput) {
		t.Errorf("direction 0: got %v, want ErrBadInput", err)
	}
}
