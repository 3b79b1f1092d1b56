package deployer

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"icoforge/src/config"
)

// Deployer installs the generated icon next to the applications that load it
type Deployer struct {
	cfg *config.Config
}

// NewDeployer creates a new deployer
func NewDeployer(cfg *config.Config) *Deployer {
	return &Deployer{cfg: cfg}
}

// Deploy copies iconPath into every configured target directory and returns the written paths.
// Targets are created if missing. No targets is a no-op.
func (d *Deployer) Deploy(iconPath string) ([]string, error) {
	targets := d.cfg.Deploy.Targets
	if len(targets) == 0 {
		return nil, nil
	}

	log.Printf("🚀 Deploying %s to %d target(s)...", iconPath, len(targets))

	info, err := os.Stat(iconPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat icon: %w", err)
	}

	written := make([]string, 0, len(targets))
	for _, dir := range targets {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return written, fmt.Errorf("failed to create target directory %s: %w", dir, err)
		}

		dst := filepath.Join(dir, filepath.Base(iconPath))
		if sameFile(iconPath, dst) {
			continue // Already in place
		}

		if err := copyFile(iconPath, dst, info.Mode().Perm()); err != nil {
			return written, fmt.Errorf("failed to copy icon to %s: %w", dir, err)
		}

		log.Printf("✓ Installed: %s", dst)
		written = append(written, dst)
	}

	return written, nil
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// copyFile copies src to dst through a temp file so readers never see a partial icon
func copyFile(src, dst string, mode os.FileMode) (err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, srcFile); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
