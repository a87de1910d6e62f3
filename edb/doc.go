/*
Package edb provides an encrypted record store layered over any persistent,
unordered, string-keyed medium.

Records are grouped in tables. Each record is encoded as JSON, encrypted and
stored as a single entry of the medium, so the medium never sees plaintext.


Encryption

Records are encrypted using AES-256 in GCM (Galois/Counter Mode) mode with a
fresh random 96 bits nonce for every write. The encryption key is derived
from a secret and a salt using the PBKDF2 algorithm with HMAC-SHA256 and at
least 100000 iterations. Opening a store with the same secret and salt
always yields the same key, which is required to read back records written
by a previous process.


Storage Format

Every record is stored under the key:

   {prefix}_{table}_{key}

The prefix defaults to "@edb". Prefixes and table names can only contain
alphanumeric characters and dashes ("-"); prefixes may also contain "@".
Neither can contain the separator, which makes the key reversible: the
record key is whatever follows "{prefix}_{table}_".

The stored value is a JSON object holding the nonce as an array of byte
values and the ciphertext, authentication tag included, encoded using
standard base 64:

   {"iv":[12 numbers],"data":"base64(ciphertext)"}


Mediums

A Medium only needs to get, set, remove and list string entries.
MemoryMedium and FileMedium are provided by this package; the mongostore
package stores entries in a MongoDB collection. Mediums implementing
AtomicMedium let the store assign generated keys without a check-then-set
race.


Limitation

The store is not a database: there are no transactions spanning several
records and a table can only be queried by scanning it.


Security

All the security relies on the secret. There is no key rotation: records
written with one secret and salt can only be read with the same pair.
*/
package edb
