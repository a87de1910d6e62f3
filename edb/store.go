package edb

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultMaxKeyAttempts = 8

// A Store encrypts records and persists them into a Medium under
// table-scoped storage keys. The store is safe for concurrent use.
type Store struct {
	medium Medium
	cipher *Cipher
	ns     namespace
	log    zerolog.Logger

	newKey         func() string
	maxKeyAttempts int
	closed         atomic.Bool
}

// An Option configures a Store.
type Option func(*options)

type options struct {
	prefix         string
	iterations     int
	logger         zerolog.Logger
	newKey         func() string
	maxKeyAttempts int
}

// WithPrefix sets the namespace prefix of storage keys. DefaultPrefix is
// used when prefix is empty. A prefix can only contain alphanumeric
// characters, dashes and "@"; Open fails with ErrConstruction otherwise.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithIterations sets the PBKDF2 iteration count. Values below MinIterations
// are ignored.
func WithIterations(n int) Option {
	return func(o *options) { o.iterations = n }
}

// WithLogger sets the logger used to trace store operations. Secrets and
// record contents are never logged.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithKeyGenerator replaces the random UUID generator used for records
// stored without an explicit key.
func WithKeyGenerator(fn func() string) Option {
	return func(o *options) { o.newKey = fn }
}

// WithMaxKeyAttempts bounds the number of generated keys tried before Put
// gives up with ErrKeyGeneration.
func WithMaxKeyAttempts(n int) Option {
	return func(o *options) { o.maxKeyAttempts = n }
}

// Open derives the store key from secret and salt and returns a store ready
// to read and write records in medium. The same secret and salt must be used
// to read records written by a previous store.
//
// Key derivation is deliberately slow; Open honours ctx cancellation only
// before it starts.
func Open(ctx context.Context, medium Medium, secret, salt string, opts ...Option) (*Store, error) {
	o := options{
		prefix:         DefaultPrefix,
		iterations:     MinIterations,
		logger:         zerolog.Nop(),
		newKey:         func() string { return uuid.New().String() },
		maxKeyAttempts: defaultMaxKeyAttempts,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.prefix == "" {
		o.prefix = DefaultPrefix
	}
	if o.maxKeyAttempts < 1 {
		o.maxKeyAttempts = 1
	}

	if medium == nil {
		return nil, errors.Wrap(ErrConstruction, "no medium")
	}
	if secret == "" {
		return nil, errors.Wrap(ErrConstruction, "secret is empty")
	}
	if salt == "" {
		return nil, errors.Wrap(ErrConstruction, "salt is empty")
	}
	if err := validatePrefix(o.prefix); err != nil {
		return nil, errors.Wrap(ErrConstruction, err.Error())
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "cannot open store")
	}

	c, err := NewCipher(DeriveKey(secret, []byte(salt), o.iterations))
	if err != nil {
		return nil, errors.Wrapf(ErrConstruction, "cannot create cipher: %v", err)
	}

	s := &Store{
		medium:         medium,
		cipher:         c,
		ns:             namespace{prefix: o.prefix},
		log:            o.logger.With().Str("prefix", o.prefix).Logger(),
		newKey:         o.newKey,
		maxKeyAttempts: o.maxKeyAttempts,
	}
	s.log.Debug().Msg("store opened")
	return s, nil
}

// Prefix returns the namespace prefix of the store.
func (s *Store) Prefix() string {
	return s.ns.prefix
}

// Exists reports whether a record is stored at key in table.
func (s *Store) Exists(ctx context.Context, table, key string) (bool, error) {
	sk, err := s.storageKey(table, key)
	if err != nil {
		return false, err
	}
	_, ok, err := s.medium.GetItem(ctx, sk)
	if err != nil {
		return false, errors.Wrapf(err, "cannot check record %q", sk)
	}
	return ok, nil
}

// Put encrypts plaintext and stores it in table. An empty key asks the store
// to generate one, retrying on collision; an explicit key always overwrites
// the existing record. It returns the key the record was stored under.
//
// Nothing is written to the medium unless encryption succeeded.
func (s *Store) Put(ctx context.Context, table, key string, plaintext []byte) (string, error) {
	if err := s.check(table); err != nil {
		return "", err
	}
	if key != "" {
		return key, s.put(ctx, table, key, plaintext)
	}
	return s.putGenerated(ctx, table, plaintext)
}

func (s *Store) put(ctx context.Context, table, key string, plaintext []byte) error {
	sk := s.ns.storageKey(table, key)
	text, err := s.seal(plaintext)
	if err != nil {
		return errors.Wrapf(err, "cannot store record %q", sk)
	}
	if err := s.medium.SetItem(ctx, sk, text); err != nil {
		return errors.Wrapf(err, "cannot store record %q", sk)
	}
	s.log.Debug().Str("table", table).Str("key", key).Msg("record stored")
	return nil
}

func (s *Store) putGenerated(ctx context.Context, table string, plaintext []byte) (string, error) {
	am, atomicMedium := s.medium.(AtomicMedium)

	var text string
	if atomicMedium {
		var err error
		if text, err = s.seal(plaintext); err != nil {
			return "", errors.Wrapf(err, "cannot store record in table %q", table)
		}
	}

	for attempt := 1; attempt <= s.maxKeyAttempts; attempt++ {
		key := s.newKey()
		if key == "" {
			return "", errors.Wrap(ErrKeyGeneration, "generator returned an empty key")
		}
		sk := s.ns.storageKey(table, key)

		if atomicMedium {
			stored, err := am.SetItemIfAbsent(ctx, sk, text)
			if err != nil {
				return "", errors.Wrapf(err, "cannot store record %q", sk)
			}
			if stored {
				s.log.Debug().Str("table", table).Str("key", key).Msg("record stored")
				return key, nil
			}
		} else {
			_, taken, err := s.medium.GetItem(ctx, sk)
			if err != nil {
				return "", errors.Wrapf(err, "cannot check record %q", sk)
			}
			if !taken {
				return key, s.put(ctx, table, key, plaintext)
			}
		}
		s.log.Debug().Str("table", table).Int("attempt", attempt).Msg("generated key collision")
	}
	return "", errors.Wrapf(ErrKeyGeneration, "table %q: %d attempts", table, s.maxKeyAttempts)
}

// Fetch returns the decrypted record stored at key in table. ok is false,
// with a nil error, when there is no such record.
func (s *Store) Fetch(ctx context.Context, table, key string) (plaintext []byte, ok bool, err error) {
	sk, err := s.storageKey(table, key)
	if err != nil {
		return nil, false, err
	}
	text, ok, err := s.medium.GetItem(ctx, sk)
	if err != nil {
		return nil, false, errors.Wrapf(err, "cannot read record %q", sk)
	}
	if !ok {
		return nil, false, nil
	}
	plaintext, err = s.open(sk, text)
	if err != nil {
		return nil, false, err
	}
	return plaintext, true, nil
}

// Keys lists the record keys of table, in the order of the medium.
func (s *Store) Keys(ctx context.Context, table string) ([]string, error) {
	if err := s.check(table); err != nil {
		return nil, err
	}
	all, err := s.medium.Keys(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list table %q", table)
	}
	keys := make([]string, 0)
	for _, sk := range all {
		if k, ok := s.ns.recordKey(table, sk); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Delete removes the record stored at key in table. Deleting a missing
// record is not an error.
func (s *Store) Delete(ctx context.Context, table, key string) error {
	sk, err := s.storageKey(table, key)
	if err != nil {
		return err
	}
	if err := s.medium.RemoveItem(ctx, sk); err != nil {
		return errors.Wrapf(err, "cannot delete record %q", sk)
	}
	s.log.Debug().Str("table", table).Str("key", key).Msg("record deleted")
	return nil
}

// Close zeroes the derived key. The medium is left open since the store
// does not own it.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.log.Debug().Msg("store closed")
	return s.cipher.Close()
}

func (s *Store) check(table string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return validateTable(table)
}

func (s *Store) storageKey(table, key string) (string, error) {
	if err := s.check(table); err != nil {
		return "", err
	}
	if err := validateKey(key); err != nil {
		return "", err
	}
	return s.ns.storageKey(table, key), nil
}

func (s *Store) seal(plaintext []byte) (string, error) {
	env, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	text, err := env.MarshalText()
	if err != nil {
		return "", errors.Wrap(ErrEncryption, err.Error())
	}
	return string(text), nil
}

func (s *Store) open(storageKey, text string) ([]byte, error) {
	env, err := ParseEnvelope(text)
	if err == nil {
		var plaintext []byte
		if plaintext, err = s.cipher.Decrypt(env); err == nil {
			return plaintext, nil
		}
	}
	s.log.Debug().Str("storage_key", storageKey).Msg("record decryption failed")
	return nil, &DecryptionError{StorageKey: storageKey, Err: err}
}
