// Package clicreds reads the client credentials file at
// ~/.config/cutman/credentials.toml, an external contract written by
// other tooling and consumed (never produced) by cutman's own binaries
// through the git-credential-helper subcommand.
package clicreds

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// File is the on-disk shape of credentials.toml.
type File struct {
	ServerURL string `toml:"server_url"`
	Token     string `toml:"token"`
}

// DefaultPath returns ~/.config/cutman/credentials.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "cutman", "credentials.toml"), nil
}

// Load reads and parses the credentials file at path.
func Load(path string) (File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return File{}, err
	}
	return f, nil
}
