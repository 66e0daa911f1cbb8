package wayland

import (
	"fmt"
	"github.com/adrg/xdg"
	"os"
	"path/filepath"
)

// GetSocketPath resolves the compositor socket from WAYLAND_DISPLAY. Relative
// names live in the XDG runtime directory.
func GetSocketPath() (string, error) {
	display := os.Getenv("WAYLAND_DISPLAY")
	if display == "" {
		return "", fmt.Errorf("WAYLAND_DISPLAY is not set, %w", ErrNotRunning)
	}

	if filepath.IsAbs(display) {
		return display, nil
	}

	if xdg.RuntimeDir == "" {
		return "", fmt.Errorf("XDG_RUNTIME_DIR is not set, %w", ErrNotRunning)
	}

	return filepath.Join(xdg.RuntimeDir, display), nil
}
