package provider

import (
	"context"
	"fmt"

	"github.com/zekaeng/zeka/internal/zerr"
)

// RegistryKeyProvider stands in for the Windows-registry/ETW event
// source spec.md §6 names as an out-of-scope collaborator ("USN
// journal / ETW / registry notifications on the other [OS family]").
// This build targets the filesystem-watch family via FSProvider; a
// registry-backed source is a named interface with no implementation
// here, so it always reports provider-unavailable rather than
// pretending to watch something it can't.
type RegistryKeyProvider struct {
	Root string // registry hive/key path, interpreted only by a real implementation
}

func NewRegistryKeyProvider(root string) *RegistryKeyProvider {
	return &RegistryKeyProvider{Root: root}
}

func (p *RegistryKeyProvider) Name() string { return "registry:" + p.Root }

func (p *RegistryKeyProvider) Start(ctx context.Context, sink Sink) error {
	return fmt.Errorf("%w: registry-key provider has no implementation on this platform", zerr.ErrProviderUnavailable)
}

func (p *RegistryKeyProvider) Stop() error { return nil }

// Default builds the registry this engine ships with: a single
// fsnotify-backed provider rooted at root, selected for every OS
// fsnotify itself supports (spec.md §9: "a provider registry selected
// at startup based on OS" — fsnotify already does that selection
// internally via build-tagged backends).
func Default(root string) []Provider {
	return []Provider{NewFSProvider(root)}
}
