// Package audit implements the hash-chained immutable audit log (spec §4.5)
// and the idempotency middleware for mutation requests. Grounded on the
// teacher's single-writer storage discipline (internal/app/storage/memory.go)
// and on other_examples' IdempotencyCache cleanup-loop idiom.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	domainaudit "github.com/tradingfloor/platform/internal/domain/audit"
	"github.com/tradingfloor/platform/internal/storage"
)

// Chain appends hash-linked entries to an AuditStore. Appends are serialized
// by chainMu (the spec's "fleet-wide mutex" option) so the
// (sequenceNumber, previousHash) read-then-write pair is never raced.
type Chain struct {
	store   storage.AuditStore
	chainMu sync.Mutex
}

// NewChain wraps store with hash-chain append/verify semantics.
func NewChain(store storage.AuditStore) *Chain {
	return &Chain{store: store}
}

// Append computes payloadHash/chainHash and writes the next row. The
// sequence number itself is assigned by the store under its own lock;
// chainMu only needs to protect the "read last chainHash, compute next"
// window so two concurrent appends cannot observe the same prior hash.
func (c *Chain) Append(ctx context.Context, e domainaudit.Entry) (domainaudit.Entry, error) {
	c.chainMu.Lock()
	defer c.chainMu.Unlock()

	payloadHash, err := hashPayload(e.EventPayload)
	if err != nil {
		return domainaudit.Entry{}, fmt.Errorf("audit: hash payload: %w", err)
	}
	e.PayloadHash = payloadHash

	last, ok, err := c.store.Last(ctx)
	if err != nil {
		return domainaudit.Entry{}, err
	}

	var seq int64 = 1
	if ok {
		seq = last.SequenceNumber + 1
		e.PreviousHash = last.ChainHash
	} else {
		e.PreviousHash = ""
	}
	e.ChainHash = computeChainHash(seq, payloadHash, e.PreviousHash)

	return c.store.Append(ctx, e)
}

func computeChainHash(seq int64, payloadHash, previousHash string) string {
	prior := previousHash
	if prior == "" {
		prior = "GENESIS"
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s:%s", seq, payloadHash, prior)))
	return hex.EncodeToString(sum[:])
}

func hashPayload(payload map[string]interface{}) (string, error) {
	// encoding/json marshals map keys in sorted order, so identical payloads
	// hash identically.
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// BrokenLink describes the first row at which hash-chain verification fails.
type BrokenLink struct {
	SequenceNumber int64
	Reason         string
}

// VerifyResult is the outcome of verifyHashChain (spec §4.5).
type VerifyResult struct {
	Valid  bool
	Broken *BrokenLink
}

// Verify walks every entry in sequence order and validates the chain
// invariant (spec §8 invariant 1): the first row has no previous hash and
// chainHash = SHA256("1:{payloadHash}:GENESIS"); every later row's
// previousHash must equal the prior row's chainHash.
func Verify(entries []domainaudit.Entry) VerifyResult {
	for i, e := range entries {
		expectedSeq := int64(i + 1)
		if e.SequenceNumber != expectedSeq {
			return VerifyResult{Valid: false, Broken: &BrokenLink{e.SequenceNumber, "sequence gap"}}
		}
		var priorHash string
		if i > 0 {
			priorHash = entries[i-1].ChainHash
		}
		if e.PreviousHash != priorHash {
			return VerifyResult{Valid: false, Broken: &BrokenLink{e.SequenceNumber, "previousHash mismatch"}}
		}
		if e.ChainHash != computeChainHash(e.SequenceNumber, e.PayloadHash, priorHash) {
			return VerifyResult{Valid: false, Broken: &BrokenLink{e.SequenceNumber, "chainHash mismatch"}}
		}
	}
	return VerifyResult{Valid: true}
}
