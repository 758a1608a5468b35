package sqlstore

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sb1:"

var errUnsealable = errors.New("sqlstore: token is sealed but no encryption key is configured")

// sealer encrypts tokens at rest. A nil key stores them as given.
type sealer struct {
	key *[32]byte
}

func newSealer(key []byte) (sealer, error) {
	if len(key) == 0 {
		return sealer{}, nil
	}
	if len(key) != 32 {
		return sealer{}, fmt.Errorf("sqlstore: encryption key must be 32 bytes, got %d", len(key))
	}
	var k [32]byte
	copy(k[:], key)
	return sealer{key: &k}, nil
}

func (s sealer) seal(plain string) (string, error) {
	if s.key == nil || plain == "" {
		return plain, nil
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, s.key)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(box), nil
}

func (s sealer) open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if s.key == nil {
		return "", errUnsealable
	}
	box, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil || len(box) < 24 {
		return "", errors.New("sqlstore: malformed sealed token")
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, s.key)
	if !ok {
		return "", errors.New("sqlstore: token cannot be opened with the configured key")
	}
	return string(plain), nil
}
