package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jamesainslie/depotkit/pkg/depot/config"
	"github.com/jamesainslie/depotkit/pkg/depot/manifest"
	"github.com/jamesainslie/depotkit/pkg/depot/output"
)

// keyFlag holds the --key value shared by commands that decrypt names.
type keyFlag struct {
	hex string
}

// resolve returns the key from --key, or from the config keys section
// for the manifest's depot.
func (k *keyFlag) resolve(cfg *config.Config, depotID uint32) ([]byte, error) {
	if k.hex != "" {
		return config.ParseKey(k.hex)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w %d", config.ErrNoKey, depotID)
	}
	return cfg.DepotKey(depotID)
}

// tryDecrypt decrypts filenames when a key is available. It returns a
// warning for the output when names stay encrypted.
func (a *app) tryDecrypt(m *manifest.Manifest, key *keyFlag) string {
	if !m.Metadata.FilenamesEncrypted {
		return ""
	}

	k, err := key.resolve(a.cfg, m.Metadata.DepotID)
	if err != nil {
		if errors.Is(err, config.ErrNoKey) {
			return fmt.Sprintf("filenames are encrypted; pass --key or set keys.%d in the config", m.Metadata.DepotID)
		}
		return err.Error()
	}

	if !m.DecryptFilenames(k) {
		return fmt.Sprintf("could not decrypt filenames for depot %d; the key is probably wrong", m.Metadata.DepotID)
	}
	a.printVerbose("decrypted %d filenames", len(m.Listing.Entries))
	return ""
}

// formatter resolves an output format name, falling back to the
// configured default. The template format requires tmpl.
func (a *app) formatter(name, tmpl string) (output.Formatter, error) {
	if name == "" {
		name = a.cfg.Output.Format
	}

	if name == "template" {
		if tmpl == "" {
			return nil, fmt.Errorf("--template is required when using -f template")
		}
		return output.NewTemplateFormatter(tmpl), nil
	}

	f, err := output.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown output format %q: available formats are %v", name, output.Available())
	}
	return f, nil
}

// parseCommaSeparated splits a comma-separated string and trims whitespace.
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
