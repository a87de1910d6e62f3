package edb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrConstruction is returned by Open when the store cannot be built from
	// the provided medium and secret material.
	ErrConstruction = errors.New("cannot construct store")

	// ErrEncryption is returned when a record cannot be encrypted.
	ErrEncryption = errors.New("encryption failed")

	// ErrDecryption is returned when a stored record cannot be decrypted:
	// malformed envelope, authentication failure or wrong key.
	ErrDecryption = errors.New("decryption failed")

	// ErrInvalidTable is returned for table names that are empty or contain
	// characters other than alphanumerics and dashes.
	ErrInvalidTable = errors.New("invalid table name")

	// ErrInvalidKey is returned for empty record keys.
	ErrInvalidKey = errors.New("invalid record key")

	// ErrKeyGeneration is returned when no free record key could be generated.
	ErrKeyGeneration = errors.New("cannot generate unique record key")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// A DecryptionError reports the storage key of a record that could not be
// decrypted. It matches ErrDecryption with errors.Is.
type DecryptionError struct {
	StorageKey string
	Err        error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("record %q: %v", e.StorageKey, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// A BatchError is returned by SetMultiple when some values could not be
// stored. Values at other indexes were stored.
type BatchError struct {
	Errs map[int]error
}

func (e *BatchError) Error() string {
	idx := make([]int, 0, len(e.Errs))
	for i := range e.Errs {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, fmt.Sprintf("#%d: %v", i, e.Errs[i]))
	}
	return fmt.Sprintf("%d of batch failed: %s", len(idx), strings.Join(parts, "; "))
}

// Unwrap exposes every failure so errors.Is can match any of them.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errs))
	for _, err := range e.Errs {
		errs = append(errs, err)
	}
	return errs
}
