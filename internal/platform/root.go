package platform

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrRootNotFound is returned when no project root marker exists above a directory.
var ErrRootNotFound = errors.New("root not found")

// ConfigFileName is the project configuration file.
const ConfigFileName = "inkwell.yaml"

// FindRoot walks upwards from startDir looking for an inkwell.yaml file or a
// .inkwell directory and returns the first directory that has one.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for dir := abs; ; {
		if hasFile(dir, ConfigFileName) || hasFile(dir, ".inkwell") {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrRootNotFound
		}
		dir = parent
	}
}

// FindConfig returns the config file for the root above startDir, checking
// <root>/inkwell.yaml then <root>/.inkwell/config.yaml.
func FindConfig(startDir string) (string, error) {
	root, err := FindRoot(startDir)
	if err != nil {
		return "", err
	}
	for _, candidate := range []string{
		filepath.Join(root, ConfigFileName),
		filepath.Join(root, ".inkwell", "config.yaml"),
	} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", ErrRootNotFound
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
