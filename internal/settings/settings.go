// Package settings persists the user's selected quality tier between runs.
// Generated star data is never written.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/litescript/ls-galaxy/internal/starfield"
)

// ErrNoPath is returned when no settings location is configured.
var ErrNoPath = errors.New("settings path not set")

// File is the on-disk representation.
type File struct {
	Quality string    `json:"quality"`
	SavedAt time.Time `json:"saved_at"`
}

// Load returns the tier stored at path. found is false when the file does
// not exist yet, in which case the error is nil.
func Load(path string) (tier starfield.Tier, found bool, err error) {
	if path == "" {
		return 0, false, ErrNoPath
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read settings: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return 0, false, fmt.Errorf("decode settings %s: %w", path, err)
	}
	tier, err = starfield.ParseTier(f.Quality)
	if err != nil {
		return 0, false, fmt.Errorf("settings %s: %w", path, err)
	}
	return tier, true, nil
}

// Save writes tier to path, creating the parent directory. The file is
// replaced atomically.
func Save(path string, tier starfield.Tier) error {
	if path == "" {
		return ErrNoPath
	}
	if !tier.Valid() {
		return fmt.Errorf("save settings: %w", starfield.ErrUnknownTier)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	data, err := json.MarshalIndent(File{Quality: tier.String(), SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
