package disclosure

import (
	"context"
	"fmt"

	"github.com/cipherbet/cipherbet/internal/confidential"
	"github.com/cipherbet/cipherbet/internal/domain"
)

// LocalOracle is an in-process decryption service: it holds the vault
// decryptor and the oracle signing key, and answers disclosure requests
// synchronously. Deployments that run the oracle out of process implement
// domain.DisclosureOracle with a network client instead; the proofs are
// identical either way.
type LocalOracle struct {
	dec    *confidential.Decryptor
	signer *Signer
}

// NewLocalOracle builds a LocalOracle over the given vault decryptor and
// signer.
func NewLocalOracle(dec *confidential.Decryptor, signer *Signer) *LocalOracle {
	return &LocalOracle{dec: dec, signer: signer}
}

// Disclose reveals the cleartext behind each handle and signs the result.
func (o *LocalOracle) Disclose(ctx context.Context, handles []domain.Handle) ([]uint64, []byte, error) {
	values := make([]uint64, len(handles))
	for i, h := range handles {
		v, err := o.dec.Reveal(h)
		if err != nil {
			return nil, nil, fmt.Errorf("disclosure: reveal %s: %w", h.Hex(), err)
		}
		values[i] = v
	}
	proof, err := o.signer.Sign(handles, values)
	if err != nil {
		return nil, nil, err
	}
	return values, proof, nil
}

var _ domain.DisclosureOracle = (*LocalOracle)(nil)
