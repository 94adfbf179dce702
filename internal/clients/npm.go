package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

// NpmCLI queries package metadata through `npm view <name> --json`
type NpmCLI struct {
	Binary  string
	Timeout time.Duration
}

// DetectNpm locates the npm executable in PATH
func DetectNpm() (*NpmCLI, error) {
	path, err := exec.LookPath("npm")
	if err != nil {
		return nil, fmt.Errorf("npm is not installed or not found in PATH: %w", err)
	}
	return &NpmCLI{Binary: path}, nil
}

// View runs npm view for the package and decodes its publish times
func (c *NpmCLI) View(ctx context.Context, name string) (models.RegistryView, error) {
	if name == "" {
		return models.RegistryView{}, fmt.Errorf("%w: empty package name", ErrUnavailable)
	}

	ctx, cancel := withQueryTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Binary, "view", name, "--json")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return models.RegistryView{}, fmt.Errorf("%w: npm view %s: %v (stderr: %s)",
			ErrUnavailable, name, err, strings.TrimSpace(stderr.String()))
	}

	var view models.RegistryView
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &view); err != nil {
		return models.RegistryView{}, fmt.Errorf("%w: npm view %s: %v", ErrUnavailable, name, err)
	}

	return view, nil
}
