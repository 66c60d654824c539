package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/ports"
)

// Masked replaces every parameter value whose key matches a mask pattern.
const Masked = "***"

type maskMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewMaskMiddleware creates a middleware that masks parameter values whose keys match
// one of the patterns before they reach the store. Masking is lossy: a resumed host
// sees Masked instead of the original value.
func NewMaskMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.StateStore) ports.StateStore {
		return &maskMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *maskMiddleware) Save(ctx context.Context, key string, snap *domain.Snapshot) error {
	// The engine keeps using snap, so only the copy is masked.
	cloned := *snap
	if snap.Parameters != nil {
		cloned.Parameters = make(map[string]map[string]any, len(snap.Parameters))
		for typeName, data := range snap.Parameters {
			masked := deepCopyMap(data)
			maskMap(masked, m.patterns)
			cloned.Parameters[typeName] = masked
		}
	}
	return m.next.Save(ctx, key, &cloned)
}

func (m *maskMiddleware) Load(ctx context.Context, key string) (*domain.Snapshot, error) {
	return m.next.Load(ctx, key)
}

func (m *maskMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *maskMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(sub)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		matched := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Masked
				matched = true
				break
			}
		}
		if sub, ok := v.(map[string]any); ok && !matched {
			maskMap(sub, patterns)
		}
	}
}
