// Package disclosure implements the two-phase reveal protocol: the core
// registers disclosure handles, an off-ledger oracle returns cleartext with
// a signed proof, and the core verifies the proof against exactly the
// expected handle set before accepting the cleartext as canonical.
package disclosure

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// digestTag domain-separates disclosure digests from any other signed data.
var digestTag = []byte("\x19CipherBet disclosure v1:")

// Digest computes the signing digest over an ordered (handle, value) set:
// keccak256(tag || n || handle_1 || value_1 || ... || handle_n || value_n).
func Digest(handles []domain.Handle, values []uint64) []byte {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(handles)))
	parts := [][]byte{digestTag, n[:]}
	for i, h := range handles {
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], values[i])
		hc := h
		parts = append(parts, hc[:], v[:])
	}
	return ethcrypto.Keccak256(parts...)
}

// Signer produces disclosure proofs. It is held by the decryption oracle,
// never by the core.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("disclosure: invalid oracle key: %w", err)
	}
	return &Signer{key: pk, address: ethcrypto.PubkeyToAddress(pk.PublicKey)}, nil
}

// Address returns the oracle address corresponding to the signing key.
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign produces a 65-byte proof (r || s || v, v in {27,28}) over the
// disclosure digest for the given handles and values.
func (s *Signer) Sign(handles []domain.Handle, values []uint64) ([]byte, error) {
	if len(handles) != len(values) {
		return nil, fmt.Errorf("disclosure: %d handles but %d values", len(handles), len(values))
	}
	sig, err := ethcrypto.Sign(Digest(handles, values), s.key)
	if err != nil {
		return nil, fmt.Errorf("disclosure: signing: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// Verifier checks disclosure proofs against a configured oracle address.
type Verifier struct {
	oracle common.Address
}

// NewVerifier creates a Verifier trusting the given oracle address.
func NewVerifier(oracle common.Address) *Verifier {
	return &Verifier{oracle: oracle}
}

// Oracle returns the trusted oracle address.
func (v *Verifier) Oracle() common.Address {
	return v.oracle
}

// Verify checks that proof is a valid oracle signature over exactly the
// given handles and cleartext values.
func (v *Verifier) Verify(handles []domain.Handle, values []uint64, proof []byte) error {
	if len(handles) != len(values) {
		return fmt.Errorf("disclosure: %w: %d handles but %d values", domain.ErrBadProof, len(handles), len(values))
	}
	if len(proof) != 65 {
		return fmt.Errorf("disclosure: %w: proof must be 65 bytes, got %d", domain.ErrBadProof, len(proof))
	}
	sig := make([]byte, 65)
	copy(sig, proof)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(Digest(handles, values), sig)
	if err != nil {
		return fmt.Errorf("disclosure: %w: %v", domain.ErrBadProof, err)
	}
	if ethcrypto.PubkeyToAddress(*pub) != v.oracle {
		return fmt.Errorf("disclosure: %w: signer is not the oracle", domain.ErrBadProof)
	}
	return nil
}
