package vault

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// KeyError reports an unusable key file.
type KeyError struct {
	Path string
	Size int
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("vault key %s has %d bytes, want %d", e.Path, e.Size, keySize)
}

// ErrUnsealFailed is returned when a stored secret cannot be opened with the
// current key.
var ErrUnsealFailed = errors.New("vault: unseal secret failed")

// LoadOrCreateKey reads the sealing key at path, generating it on first use.
func LoadOrCreateKey(path string) (*[keySize]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != keySize {
			return nil, &KeyError{Path: path, Size: len(data)}
		}
		var key [keySize]byte
		copy(key[:], data)
		return &key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read vault key: %w", err)
	}

	var key [keySize]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, fmt.Errorf("generate vault key: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("create vault key: %w", err)
	}
	if _, err := f.Write(key[:]); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write vault key: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close vault key: %w", err)
	}
	return &key, nil
}

func seal(key *[keySize]byte, plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

func unseal(key *[keySize]byte, box []byte) ([]byte, error) {
	if len(box) < nonceSize+secretbox.Overhead {
		return nil, ErrUnsealFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	out, ok := secretbox.Open(nil, box[nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrUnsealFailed
	}
	return out, nil
}
