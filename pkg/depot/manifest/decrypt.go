package manifest

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jamesainslie/depotkit/pkg/depot/crypto"
)

// DecryptFunc decrypts one filename blob with the depot key.
type DecryptFunc func(ciphertext, key []byte) ([]byte, error)

// DecryptFilenames decrypts every filename with the depot filename scheme.
// See DecryptFilenamesWith.
func (m *Manifest) DecryptFilenames(key []byte) bool {
	return m.DecryptFilenamesWith(key, crypto.SymmetricDecrypt)
}

// DecryptFilenamesWith decrypts every filename in listing order using
// decrypt. It returns true without doing anything when the filenames are
// already plain.
//
// On the first failure it returns false. Entries decrypted before the
// failure keep their plain names and Metadata.FilenamesEncrypted stays set.
func (m *Manifest) DecryptFilenamesWith(key []byte, decrypt DecryptFunc) bool {
	if !m.Metadata.FilenamesEncrypted {
		return true
	}

	for i := range m.Listing.Entries {
		f := &m.Listing.Entries[i]
		name, err := decryptFilename(f.Name, key, decrypt)
		if err != nil {
			logger.Warn("filename decryption failed",
				"depot", m.Metadata.DepotID,
				"manifest", m.Metadata.ManifestID,
				"index", i,
				"name", f.Name,
				"err", err)
			return false
		}
		f.Name = name
	}

	m.Metadata.FilenamesEncrypted = false
	logger.Debug("filenames decrypted",
		"depot", m.Metadata.DepotID,
		"files", len(m.Listing.Entries))
	return true
}

func decryptFilename(name string, key []byte, decrypt DecryptFunc) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(name)
	if err != nil {
		return "", fmt.Errorf("decoding base64: %w", err)
	}

	plain, err := decrypt(ciphertext, key)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}

	s := string(plain)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return strings.TrimRight(s, "\x00"), nil
}
