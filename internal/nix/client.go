package nix

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DefaultRegistry is the flake registry packages are resolved against.
const DefaultRegistry = "nixpkgs"

// Client implements ClientInterface by invoking the nix binary through a
// Runner and classifying failed invocations.
type Client struct {
	runner   Runner
	registry string

	// strictDeleteStderr treats stderr output on a zero-exit delete as a
	// failure. Some nix versions warn while still deleting; the policy is
	// configurable because the safe reading of that output differs per
	// deployment.
	strictDeleteStderr bool
}

// NewClient creates a client resolving package names against the given
// registry ("nixpkgs" when empty).
func NewClient(runner Runner, registry string, strictDeleteStderr bool) *Client {
	if registry == "" {
		registry = DefaultRegistry
	}
	return &Client{runner: runner, registry: registry, strictDeleteStderr: strictDeleteStderr}
}

// ref renders the installable reference for a package name.
func (c *Client) ref(name string) string {
	return c.registry + "#" + name
}

// buildResult is one element of `nix build --json` output.
type buildResult struct {
	Outputs map[string]string `json:"outputs"`
}

// pathInfo is one element of `nix path-info --json` output.
type pathInfo struct {
	Path        string `json:"path"`
	Valid       bool   `json:"valid"`
	ClosureSize int64  `json:"closureSize"`
}

func (c *Client) InstallPackage(ctx context.Context, storeRoot, name string) (string, error) {
	result, err := c.runner.Run(ctx, storeRoot, "build", "--json", "--no-link", c.ref(name))
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", Classify(result)
	}

	var built []buildResult
	if err := json.Unmarshal([]byte(result.Stdout), &built); err != nil {
		return "", fmt.Errorf("parse build output: %w", err)
	}
	if len(built) == 0 || built[0].Outputs["out"] == "" {
		return "", fmt.Errorf("build output for %s has no out path", c.ref(name))
	}
	return built[0].Outputs["out"], nil
}

func (c *Client) RemovePackage(ctx context.Context, storeRoot, name string) error {
	result, err := c.runner.Run(ctx, storeRoot, "store", "delete", c.ref(name))
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return Classify(result)
	}
	if c.strictDeleteStderr && strings.TrimSpace(result.Stderr) != "" {
		return Classify(result)
	}
	return nil
}

func (c *Client) GetClosure(ctx context.Context, storeRoot, name string) ([]string, error) {
	result, err := c.runner.Run(ctx, storeRoot, "path-info", "--json", "--recursive", c.ref(name))
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, Classify(result)
	}

	infos, err := c.parsePathInfo(result, name)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(infos))
	closure := make([]string, 0, len(infos))
	for _, info := range infos {
		if _, ok := seen[info.Path]; ok {
			continue
		}
		seen[info.Path] = struct{}{}
		closure = append(closure, info.Path)
	}
	sort.Strings(closure)
	return closure, nil
}

func (c *Client) GetClosureSize(ctx context.Context, storeRoot, name string) (int64, error) {
	result, err := c.runner.Run(ctx, storeRoot, "path-info", "--json", "--closure-size", c.ref(name))
	if err != nil {
		return 0, err
	}
	if result.ExitCode != 0 {
		return 0, Classify(result)
	}

	infos, err := c.parsePathInfo(result, name)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, info := range infos {
		total += info.ClosureSize
	}
	return total, nil
}

// parsePathInfo decodes path-info output and enforces the validity rule:
// any invalid entry means the package is no longer installed in the store.
func (c *Client) parsePathInfo(result *Result, name string) ([]pathInfo, error) {
	var infos []pathInfo
	if err := json.Unmarshal([]byte(result.Stdout), &infos); err != nil {
		return nil, fmt.Errorf("parse path-info output for %s: %w", c.ref(name), err)
	}
	for _, info := range infos {
		if !info.Valid {
			return nil, &ToolError{Kind: KindPackageNotInstalled, Stderr: result.Stderr, ExitCode: result.ExitCode}
		}
	}
	return infos, nil
}
