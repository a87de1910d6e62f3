package edb

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const keySize = 32

// MinIterations is the lowest PBKDF2 iteration count accepted by DeriveKey.
const MinIterations = 100000

// standard GCM nonce size
const nonceSize = 12

// DeriveKey derives a 256-bit key from the secret and salt using PBKDF2 with
// HMAC-SHA256. The same inputs always yield the same key. Iteration counts
// below MinIterations are raised to MinIterations.
func DeriveKey(secret string, salt []byte, iterations int) []byte {
	if iterations < MinIterations {
		iterations = MinIterations
	}
	return pbkdf2.Key([]byte(secret), salt, iterations, keySize, sha256.New)
}

// A Cipher performs authenticated encryption of record payloads with
// AES-256-GCM. It is safe for concurrent use.
type Cipher struct {
	mu  sync.RWMutex
	key []byte
	gcm cipher.AEAD
}

// NewCipher creates a Cipher owning the given 32 bytes key. The caller must
// not reuse the key slice afterwards: Close zeroes it.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, errors.Errorf("invalid key length %d; want %d", len(key), keySize)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	// mlock is best effort; a failure leaves the key swappable but usable.
	_ = lockMemory(key)
	return &Cipher{key: key, gcm: gcm}, nil
}

// Encrypt seals plaintext under a freshly generated nonce.
func (c *Cipher) Encrypt(plaintext []byte) (env Envelope, err error) {
	if c == nil {
		return Envelope{}, errors.Wrap(ErrEncryption, "cipher is not initialized")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.gcm == nil {
		return Envelope{}, errors.Wrap(ErrEncryption, "cipher is closed")
	}

	defer func() {
		if r := recover(); r != nil {
			env, err = Envelope{}, errors.Wrapf(ErrEncryption, "gcm seal: %v", r)
		}
	}()

	nonce, err := generateNonce(c.gcm.NonceSize())
	if err != nil {
		return Envelope{}, errors.Wrap(ErrEncryption, err.Error())
	}
	return Envelope{
		Nonce:      nonce,
		Ciphertext: c.gcm.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Decrypt opens an envelope sealed by Encrypt. Any failure, including a tag
// mismatch caused by tampering or a wrong key, is reported as ErrDecryption.
func (c *Cipher) Decrypt(env Envelope) ([]byte, error) {
	if c == nil {
		return nil, errors.Wrap(ErrDecryption, "cipher is not initialized")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.gcm == nil {
		return nil, errors.Wrap(ErrDecryption, "cipher is closed")
	}
	if len(env.Nonce) != c.gcm.NonceSize() {
		return nil, errors.Wrapf(ErrDecryption, "invalid nonce length %d", len(env.Nonce))
	}
	if len(env.Ciphertext) < c.gcm.Overhead() {
		return nil, errors.Wrap(ErrDecryption, "ciphertext is truncated")
	}
	plaintext, err := c.gcm.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(ErrDecryption, err.Error())
	}
	return plaintext, nil
}

// Close zeroes the key. Subsequent calls to Encrypt and Decrypt fail.
func (c *Cipher) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gcm == nil {
		return nil
	}
	for i := range c.key {
		c.key[i] = 0
	}
	_ = unlockMemory(c.key)
	c.key, c.gcm = nil, nil
	return nil
}

func generateNonce(nonceSize int) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "cannot generate nonce")
	}
	return nonce, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create new aes block cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create new gcm cipher")
	}
	return gcm, nil
}
