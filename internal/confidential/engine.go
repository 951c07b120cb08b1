// Package confidential implements the confidential-value vault backing the
// settlement core. Values are held encrypted under a vault master key and
// referenced by opaque handles; the package exposes only algebraic
// operations (add, equality, select). There is no decode path — cleartext
// is reachable solely through a Decryptor, which requires possession of the
// master key and is handed exclusively to the disclosure oracle.
package confidential

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr/mimc"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// Engine is the confidential computation vault. All operations are keyed by
// handle; cell contents are MiMC-masked under the vault master key and are
// never returned to callers.
type Engine struct {
	mu      sync.Mutex
	vaultID [32]byte
	key     []byte
	nonce   uint64
	cells   map[domain.Handle][8]byte
}

// NewEngine creates a vault sealed under the given master key.
func NewEngine(masterKey []byte) (*Engine, error) {
	if len(masterKey) < 16 {
		return nil, errors.New("confidential: master key too short")
	}
	e := &Engine{
		key:   bytes.Clone(masterKey),
		cells: make(map[domain.Handle][8]byte),
	}
	copy(e.vaultID[:], crypto.Keccak256([]byte("cipherbet.vault"), masterKey))
	return e, nil
}

// VaultID identifies the vault. Handles are only meaningful within one vault.
func (e *Engine) VaultID() [32]byte {
	return e.vaultID
}

// Lift brings a public value into the confidential domain.
func (e *Engine) Lift(value uint64) domain.Ciphertext {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.newHandle("lift")
	e.store(h, value)
	return domain.Ciphertext{Handle: h}
}

// Add returns a ciphertext of a + b.
func (e *Engine) Add(a, b domain.Ciphertext) (domain.Ciphertext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	va, err := e.load(a.Handle)
	if err != nil {
		return domain.Ciphertext{}, err
	}
	vb, err := e.load(b.Handle)
	if err != nil {
		return domain.Ciphertext{}, err
	}
	h := e.newHandle("add", a.Handle[:], b.Handle[:])
	e.store(h, va+vb)
	return domain.Ciphertext{Handle: h}, nil
}

// Eq returns a ciphertext of 1 when a equals b, else 0.
func (e *Engine) Eq(a, b domain.Ciphertext) (domain.Ciphertext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	va, err := e.load(a.Handle)
	if err != nil {
		return domain.Ciphertext{}, err
	}
	vb, err := e.load(b.Handle)
	if err != nil {
		return domain.Ciphertext{}, err
	}
	var out uint64
	if va == vb {
		out = 1
	}
	h := e.newHandle("eq", a.Handle[:], b.Handle[:])
	e.store(h, out)
	return domain.Ciphertext{Handle: h}, nil
}

// Select returns ifTrue when cond is non-zero, else ifFalse. cond is
// normally the output of Eq.
func (e *Engine) Select(cond, ifTrue, ifFalse domain.Ciphertext) (domain.Ciphertext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	vc, err := e.load(cond.Handle)
	if err != nil {
		return domain.Ciphertext{}, err
	}
	vt, err := e.load(ifTrue.Handle)
	if err != nil {
		return domain.Ciphertext{}, err
	}
	vf, err := e.load(ifFalse.Handle)
	if err != nil {
		return domain.Ciphertext{}, err
	}
	out := vf
	if vc != 0 {
		out = vt
	}
	h := e.newHandle("select", cond.Handle[:], ifTrue.Handle[:], ifFalse.Handle[:])
	e.store(h, out)
	return domain.Ciphertext{Handle: h}, nil
}

// ---------------------------------------------------------------------------
// Vault internals. Cells are stored masked; the mask is a MiMC digest of the
// master key and the cell handle, so cell contents are opaque even to a
// process inspecting the map.
// ---------------------------------------------------------------------------

func (e *Engine) newHandle(op string, parts ...[]byte) domain.Handle {
	e.nonce++
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], e.nonce)
	data := [][]byte{e.vaultID[:], []byte(op), nonce[:]}
	data = append(data, parts...)
	var h domain.Handle
	copy(h[:], crypto.Keccak256(data...))
	return h
}

func (e *Engine) store(h domain.Handle, value uint64) {
	var word [8]byte
	binary.BigEndian.PutUint64(word[:], value)
	mask := e.mask(h)
	for i := range word {
		word[i] ^= mask[i]
	}
	e.cells[h] = word
}

func (e *Engine) load(h domain.Handle) (uint64, error) {
	word, ok := e.cells[h]
	if !ok {
		return 0, fmt.Errorf("confidential: %w: %s", domain.ErrUnknownHandle, h.Hex())
	}
	mask := e.mask(h)
	for i := range word {
		word[i] ^= mask[i]
	}
	return binary.BigEndian.Uint64(word[:]), nil
}

// mask derives the cell mask as MiMC(key || handle). Inputs are reduced to
// field elements and marshaled so every MiMC write is block-aligned.
func (e *Engine) mask(h domain.Handle) []byte {
	var k, v fr.Element
	k.SetBytes(e.key)
	v.SetBytes(h[:])
	hash := mimc.NewMiMC()
	kb := k.Bytes()
	vb := v.Bytes()
	hash.Write(kb[:])
	hash.Write(vb[:])
	return hash.Sum(nil)
}

// ---------------------------------------------------------------------------
// Disclosure access. The Decryptor is the only read path out of the vault
// and is gated on possession of the master key.
// ---------------------------------------------------------------------------

// Decryptor reveals vault cells. It is constructed only by callers holding
// the vault master key — in practice the disclosure oracle.
type Decryptor struct {
	engine *Engine
}

// Decryptor returns a reader over the vault if key matches the master key.
func (e *Engine) Decryptor(key []byte) (*Decryptor, error) {
	if !bytes.Equal(key, e.key) {
		return nil, fmt.Errorf("confidential: decryptor: %w", domain.ErrUnauthorized)
	}
	return &Decryptor{engine: e}, nil
}

// Reveal returns the cleartext behind a handle.
func (d *Decryptor) Reveal(h domain.Handle) (uint64, error) {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()
	return d.engine.load(h)
}
