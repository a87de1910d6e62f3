package edb

import (
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"
)

// An Envelope is the stored form of one encrypted record: the GCM nonce and
// the ciphertext with its authentication tag appended.
type Envelope struct {
	Nonce      []byte
	Ciphertext []byte
}

// wire form: {"iv":[...byte values...],"data":"<base64>"}
type envelopeJSON struct {
	IV   []int  `json:"iv"`
	Data string `json:"data"`
}

// MarshalText encodes the envelope into the text stored in the medium.
func (env Envelope) MarshalText() ([]byte, error) {
	iv := make([]int, len(env.Nonce))
	for i, b := range env.Nonce {
		iv[i] = int(b)
	}
	return json.Marshal(envelopeJSON{
		IV:   iv,
		Data: base64.StdEncoding.EncodeToString(env.Ciphertext),
	})
}

// ParseEnvelope decodes the text form of an envelope. Malformed input is
// reported as ErrDecryption since the record cannot be opened.
func ParseEnvelope(text string) (Envelope, error) {
	var raw envelopeJSON
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Envelope{}, errors.Wrap(ErrDecryption, "malformed envelope")
	}
	if len(raw.IV) != nonceSize {
		return Envelope{}, errors.Wrapf(ErrDecryption, "malformed envelope: iv has %d bytes; want %d", len(raw.IV), nonceSize)
	}
	nonce := make([]byte, len(raw.IV))
	for i, v := range raw.IV {
		if v < 0 || v > 255 {
			return Envelope{}, errors.Wrapf(ErrDecryption, "malformed envelope: iv value %d out of range", v)
		}
		nonce[i] = byte(v)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(raw.Data)
	if err != nil {
		return Envelope{}, errors.Wrap(ErrDecryption, "malformed base64 data in envelope")
	}
	return Envelope{Nonce: nonce, Ciphertext: ciphertext}, nil
}
