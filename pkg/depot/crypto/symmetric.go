// Package crypto implements the symmetric scheme used to obfuscate depot
// filenames: a 16-byte AES-ECB encrypted IV followed by AES-CBC ciphertext
// with PKCS#7 padding, keyed by the 32-byte depot key.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrInvalidKey is returned when the key is not a valid AES key.
	ErrInvalidKey = errors.New("invalid depot key")

	// ErrInvalidCiphertext is returned for input that cannot be decrypted.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// SymmetricDecrypt decrypts data produced by SymmetricEncrypt.
func SymmetricDecrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := newCipher(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < 2*aes.BlockSize || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidCiphertext, len(ciphertext))
	}

	iv := make([]byte, aes.BlockSize)
	block.Decrypt(iv, ciphertext[:aes.BlockSize])

	body := ciphertext[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	return pkcs7Unpad(plain)
}

// SymmetricEncrypt encrypts plaintext with a random IV read from rand.
func SymmetricEncrypt(plaintext, key []byte, rand io.Reader) ([]byte, error) {
	block, err := newCipher(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand, iv); err != nil {
		return nil, fmt.Errorf("reading iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	block.Encrypt(out[:aes.BlockSize], iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return out, nil
}

func newCipher(key []byte) (cipher.Block, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: want 32 bytes, got %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return block, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	n := len(data)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrInvalidCiphertext)
	}
	padding := int(data[n-1])
	if padding == 0 || padding > aes.BlockSize || padding > n {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidCiphertext)
	}
	for _, b := range data[n-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("%w: bad padding", ErrInvalidCiphertext)
		}
	}
	return data[:n-padding], nil
}
