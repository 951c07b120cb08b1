package confidential

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// inputTag domain-separates input binding digests from handle derivation.
var inputTag = []byte("cipherbet.input.v1")

// EncryptInput encrypts a bet direction for (bettor, round) and returns the
// ciphertext together with a proof binding it to that bettor and round. The
// core accepts an encrypted direction only with a valid binding, so a
// ciphertext observed on the wire cannot be replayed by another bettor or
// on another round.
func (e *Engine) EncryptInput(dir domain.Direction, bettor common.Address, round uint64) (domain.Ciphertext, []byte, error) {
	if dir != domain.DirectionUp && dir != domain.DirectionDown {
		return domain.Ciphertext{}, nil, fmt.Errorf("confidential: %w: direction out of range", domain.ErrBadInput)
	}
	e.mu.Lock()
	h := e.newHandle("input", bettor.Bytes())
	e.store(h, uint64(dir))
	e.mu.Unlock()
	ct := domain.Ciphertext{Handle: h}
	return ct, e.inputBinding(ct, bettor, round), nil
}

// VerifyInput checks that a submitted ciphertext was produced for exactly
// this bettor and round and holds a valid direction. The range check runs
// inside the vault; nothing about the direction leaks to the caller.
func (e *Engine) VerifyInput(ct domain.Ciphertext, bettor common.Address, round uint64, proof []byte) error {
	want := e.inputBinding(ct, bettor, round)
	if !bytes.Equal(proof, want) {
		return fmt.Errorf("confidential: %w: binding mismatch", domain.ErrBadInput)
	}
	e.mu.Lock()
	v, err := e.load(ct.Handle)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("confidential: %w: %v", domain.ErrBadInput, err)
	}
	if domain.Direction(v) != domain.DirectionUp && domain.Direction(v) != domain.DirectionDown {
		return fmt.Errorf("confidential: %w: direction out of range", domain.ErrBadInput)
	}
	return nil
}

func (e *Engine) inputBinding(ct domain.Ciphertext, bettor common.Address, round uint64) []byte {
	var rnd [8]byte
	binary.BigEndian.PutUint64(rnd[:], round)
	return crypto.Keccak256(inputTag, e.vaultID[:], ct.Handle[:], bettor.Bytes(), rnd[:])
}
