package utils

import (
	"fmt"
	"os/exec"
	"strings"
)

// GetCurrentGoModule returns the current Go module name by running 'go list -m'
func GetCurrentGoModule() (string, error) {
	cmd := exec.Command("go", "list", "-m")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get current module: %w", err)
	}

	module := strings.TrimSpace(string(output))
	if module == "" {
		return "", fmt.Errorf("no module found - not in a Go module directory")
	}

	return module, nil
}
