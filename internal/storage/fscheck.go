package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Filesystems on which SQLite file locking is unreliable.
var remoteFilesystems = map[string]bool{
	"afpfs":  true,
	"cifs":   true,
	"nfs":    true,
	"smbfs":  true,
	"smb2":   true,
	"webdav": true,
}

// fsTypeFunc reports the filesystem type holding path.
type fsTypeFunc func(path string) (string, error)

// checkLocalFilesystem refuses slot databases on network mounts. Platforms
// without detection support pass.
func checkLocalFilesystem(path string, detect fsTypeFunc) error {
	if path == "" {
		return errors.New("sqlite path is empty")
	}

	existing, err := closestExisting(path)
	if err != nil {
		return fmt.Errorf("resolve slot database path %q: %w", path, err)
	}

	fsType, err := detect(existing)
	if errors.Is(err, errUnsupportedPlatform) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("detect filesystem for %q: %w", existing, err)
	}

	if remoteFilesystems[strings.ToLower(strings.TrimSpace(fsType))] {
		return fmt.Errorf(
			"slot database %q is on network filesystem %q; SQLite needs a local filesystem for locking, set state.path to a local file",
			path, fsType,
		)
	}
	return nil
}

// closestExisting walks up from path to the first entry that exists, since
// the database file and its directory may not be created yet.
func closestExisting(path string) (string, error) {
	candidate, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	for {
		_, err := os.Stat(candidate)
		switch {
		case err == nil:
			return candidate, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", path)
		}
		candidate = parent
	}
}
