package nix

import (
	"context"
	"sync"
)

// MockClient is an in-memory ClientInterface for testing. Installed
// packages are tracked per store root, and failures can be forced per
// package to exercise the error taxonomy without a nix binary.
type MockClient struct {
	mu       sync.Mutex
	closures map[string][]string
	sizes    map[string]int64
	invalid  map[string]bool
	failures map[string]*ToolError
}

// NewMockClient creates an empty mock client.
func NewMockClient() *MockClient {
	return &MockClient{
		closures: make(map[string][]string),
		sizes:    make(map[string]int64),
		invalid:  make(map[string]bool),
		failures: make(map[string]*ToolError),
	}
}

func key(storeRoot, name string) string {
	return storeRoot + "#" + name
}

// SetClosure registers a package's closure in a store. The first path is
// treated as the package's own output path.
func (m *MockClient) SetClosure(storeRoot, name string, paths []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closures[key(storeRoot, name)] = append([]string(nil), paths...)
}

// SetClosureSize registers the aggregate closure size for a package.
func (m *MockClient) SetClosureSize(storeRoot, name string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes[key(storeRoot, name)] = size
}

// Invalidate marks a package's paths as no longer valid, simulating an
// external garbage collection.
func (m *MockClient) Invalidate(storeRoot, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalid[key(storeRoot, name)] = true
}

// FailWith forces the next operations on a package to fail with the given
// kind and stderr text.
func (m *MockClient) FailWith(storeRoot, name string, kind ErrorKind, stderr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[key(storeRoot, name)] = &ToolError{Kind: kind, Stderr: stderr, ExitCode: 1}
}

func (m *MockClient) InstallPackage(_ context.Context, storeRoot, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(storeRoot, name)
	if failure, ok := m.failures[k]; ok {
		return "", failure
	}
	if _, ok := m.closures[k]; !ok {
		m.closures[k] = []string{"/nix/store/mock-" + name}
	}
	return m.closures[k][0], nil
}

func (m *MockClient) RemovePackage(_ context.Context, storeRoot, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(storeRoot, name)
	if failure, ok := m.failures[k]; ok {
		return failure
	}
	delete(m.closures, k)
	delete(m.sizes, k)
	delete(m.invalid, k)
	return nil
}

func (m *MockClient) GetClosure(_ context.Context, storeRoot, name string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(storeRoot, name)
	closure, ok := m.closures[k]
	if !ok || m.invalid[k] {
		return nil, &ToolError{Kind: KindPackageNotInstalled}
	}
	return append([]string(nil), closure...), nil
}

func (m *MockClient) GetClosureSize(_ context.Context, storeRoot, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(storeRoot, name)
	if _, ok := m.closures[k]; !ok || m.invalid[k] {
		return 0, &ToolError{Kind: KindPackageNotInstalled}
	}
	return m.sizes[k], nil
}
