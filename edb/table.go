package edb

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// A Record is a value of a table together with the key it is stored under.
type Record[T any] struct {
	Key   string
	Value T
}

// A Table gives typed access to the records of one table of a Store. Values
// are encoded as JSON before encryption.
type Table[T any] struct {
	s    *Store
	name string
}

// NewTable returns the table called name in s. The name must only contain
// alphanumeric characters and dashes; it is checked on every operation, and
// operations on an invalid name fail with ErrInvalidTable:
//
//	edb.NewTable[Profile](s, "user-profiles") // valid
//	edb.NewTable[Profile](s, "user_profiles") // ErrInvalidTable
//
// The underscore separates the parts of a storage key and cannot appear in a
// table name.
func NewTable[T any](s *Store, name string) *Table[T] {
	return &Table[T]{s: s, name: name}
}

// Name returns the table name.
func (t *Table[T]) Name() string {
	return t.name
}

// Exists reports whether a record is stored at key.
func (t *Table[T]) Exists(ctx context.Context, key string) (bool, error) {
	return t.s.Exists(ctx, t.name, key)
}

// Set stores value at key, overwriting any previous record. When key is
// empty a unique key is generated.
func (t *Table[T]) Set(ctx context.Context, key string, value T) (Record[T], error) {
	b, err := json.Marshal(value)
	if err != nil {
		return Record[T]{}, errors.Wrap(err, "cannot encode record")
	}
	key, err = t.s.Put(ctx, t.name, key, b)
	if err != nil {
		return Record[T]{}, err
	}
	return Record[T]{Key: key, Value: value}, nil
}

// SetMultiple stores every value under a generated key. Values are stored
// concurrently and independently: a failure does not undo the values already
// stored. The returned records are in the order of values; records that
// could not be stored have an empty Key and are reported in a *BatchError.
func (t *Table[T]) SetMultiple(ctx context.Context, values []T) ([]Record[T], error) {
	records := make([]Record[T], len(values))

	var (
		mu   sync.Mutex
		errs map[int]error
		wg   sync.WaitGroup
	)
	for i, v := range values {
		wg.Add(1)
		go func(i int, v T) {
			defer wg.Done()
			rec, err := t.Set(ctx, "", v)
			if err != nil {
				mu.Lock()
				if errs == nil {
					errs = make(map[int]error)
				}
				errs[i] = err
				mu.Unlock()
				return
			}
			records[i] = rec
		}(i, v)
	}
	wg.Wait()

	if errs != nil {
		return records, &BatchError{Errs: errs}
	}
	return records, nil
}

// Get returns the value stored at key. ok is false when there is no such
// record. A record that exists but cannot be decrypted is reported as an
// error matching ErrDecryption.
func (t *Table[T]) Get(ctx context.Context, key string) (T, bool, error) {
	rec, ok, err := t.load(ctx, key)
	return rec.Value, ok, err
}

// GetAll returns every record of the table, in no particular order. A single
// record that cannot be decrypted or decoded fails the whole call; see Scan
// for a tolerant variant.
func (t *Table[T]) GetAll(ctx context.Context) ([]Record[T], error) {
	return t.Filter(ctx, nil)
}

// Filter returns the records of the table for which keep returns true. A nil
// keep selects every record. The predicate runs on decrypted records; there
// is no other way to query a table than scanning it.
func (t *Table[T]) Filter(ctx context.Context, keep func(Record[T]) bool) ([]Record[T], error) {
	keys, err := t.s.Keys(ctx, t.name)
	if err != nil {
		return nil, err
	}
	records := make([]Record[T], 0, len(keys))
	for _, k := range keys {
		rec, ok, err := t.load(ctx, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // removed since listed
		}
		if keep == nil || keep(rec) {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Remove deletes the record stored at key. Removing a missing record is not
// an error.
func (t *Table[T]) Remove(ctx context.Context, key string) error {
	return t.s.Delete(ctx, t.name, key)
}

// A ScanResult holds the records read by Scan and the keys of the records
// that could not be read, with the reason.
type ScanResult[T any] struct {
	Records []Record[T]
	Failed  map[string]error
}

// Scan reads every record of the table like GetAll, except that records that
// cannot be decrypted or decoded are collected in Failed instead of aborting.
// Medium failures still abort.
func (t *Table[T]) Scan(ctx context.Context) (*ScanResult[T], error) {
	keys, err := t.s.Keys(ctx, t.name)
	if err != nil {
		return nil, err
	}
	res := &ScanResult[T]{
		Records: make([]Record[T], 0, len(keys)),
		Failed:  make(map[string]error),
	}
	for _, k := range keys {
		rec, ok, err := t.load(ctx, k)
		switch {
		case err == nil && ok:
			res.Records = append(res.Records, rec)
		case err == nil:
		case errors.Is(err, ErrDecryption) || isDecodeError(err):
			res.Failed[k] = err
		default:
			return nil, err
		}
	}
	return res, nil
}

func (t *Table[T]) load(ctx context.Context, key string) (Record[T], bool, error) {
	b, ok, err := t.s.Fetch(ctx, t.name, key)
	if err != nil || !ok {
		return Record[T]{}, false, err
	}
	rec := Record[T]{Key: key}
	if err := json.Unmarshal(b, &rec.Value); err != nil {
		return Record[T]{}, false, &decodeError{key: key, err: err}
	}
	return rec, true, nil
}

type decodeError struct {
	key string
	err error
}

func (e *decodeError) Error() string {
	return "cannot decode record " + e.key + ": " + e.err.Error()
}

func (e *decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var de *decodeError
	return errors.As(err, &de)
}
