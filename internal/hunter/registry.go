package hunter

import (
	"fmt"

	"github.com/huecodes/hunter/internal/domain"
)

// Registry maps platform types to their hunter implementations. It is a pure
// lookup table: no I/O, no mutable state after construction.
type Registry struct {
	hunters map[domain.PlatformType]Hunter
}

// NewRegistry creates a registry from the given hunters.
// Parameters:
//   - hunters: strategy implementations to register.
// Returns:
//   - *Registry: registry keyed by each hunter's platform.
func NewRegistry(hunters ...Hunter) *Registry {
	m := make(map[domain.PlatformType]Hunter, len(hunters))
	for _, h := range hunters {
		m[h.Platform()] = h
	}
	return &Registry{hunters: m}
}

// Resolve returns the hunter for a platform type.
// Parameters:
//   - platform: platform type tag.
// Returns:
//   - Hunter: registered strategy.
//   - error: ErrUnknownPlatform (wrapped) when none is registered.
func (r *Registry) Resolve(platform domain.PlatformType) (Hunter, error) {
	h, ok := r.hunters[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	return h, nil
}

// Platforms returns the registered platform types.
func (r *Registry) Platforms() []domain.PlatformType {
	platforms := make([]domain.PlatformType, 0, len(r.hunters))
	for p := range r.hunters {
		platforms = append(platforms, p)
	}
	return platforms
}
