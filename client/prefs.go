package client

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Prefs is the local key-value preference file: ordinary client-side
// state such as the remembered display name.
type Prefs struct {
	path string
}

type prefsFile struct {
	Author string `yaml:"author"`
}

// DefaultPrefsPath places the preference file under the user config dir.
func DefaultPrefsPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".roomchat-prefs.yaml"
	}
	return filepath.Join(base, "roomchat", "prefs.yaml")
}

// NewPrefs opens the preference store at path.
func NewPrefs(path string) *Prefs {
	if path == "" {
		path = DefaultPrefsPath()
	}
	return &Prefs{path: path}
}

// Author returns the remembered display name, generating and persisting a
// User-<suffix> name on first use.
func (p *Prefs) Author() (string, error) {
	var f prefsFile
	data, err := os.ReadFile(p.path)
	if err == nil {
		if err := yaml.Unmarshal(data, &f); err == nil && f.Author != "" {
			return f.Author, nil
		}
	}

	name := generateAuthor()
	if err := p.SetAuthor(name); err != nil {
		return name, err
	}
	return name, nil
}

// SetAuthor persists the display name.
func (p *Prefs) SetAuthor(name string) error {
	data, err := yaml.Marshal(prefsFile{Author: name})
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func generateAuthor() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "User-anon"
	}
	return "User-" + hex.EncodeToString(buf)[:5]
}
