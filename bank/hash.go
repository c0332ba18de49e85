package bank

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Hash computes the content hash of an operation: a sha256 digest over the
// text, amount, raw datetime text, and the detail pairs in lexicographic
// label order. The digest is deterministic and independent of detail-map
// iteration order, so the same transaction observed twice yields the same
// hash. It is the idempotency key for storage.
func Hash(op *Operation) string {
	h := sha256.New()
	h.Write([]byte(op.Text))
	h.Write([]byte{0})
	h.Write([]byte(op.Amount.String()))
	h.Write([]byte{0})
	h.Write([]byte(op.DateTimeText))
	h.Write([]byte{0})

	labels := make([]string, 0, len(op.Details))
	for label := range op.Details {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		h.Write([]byte(label))
		h.Write([]byte{1})
		h.Write([]byte(op.Details[label]))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
