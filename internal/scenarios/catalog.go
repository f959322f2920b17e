package scenarios

import (
	"errors"
	"fmt"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/harness"
)

// ErrUnknownScenario is returned by Lookup for a name not in the catalog.
var ErrUnknownScenario = errors.New("unknown scenario")

var catalog = []func() *harness.Scenario{
	DirtyRead,
	NonRepeatableRead,
	PhantomRead,
	LostUpdate,
	WriteSkew,
	WriteConflict,
}

// All returns every scenario in catalog order.
func All() []*harness.Scenario {
	all := make([]*harness.Scenario, len(catalog))
	for i, build := range catalog {
		all[i] = build()
	}
	return all
}

// Names returns the scenario names in catalog order.
func Names() []string {
	names := make([]string, len(catalog))
	for i, build := range catalog {
		names[i] = build().Name
	}
	return names
}

// Lookup returns the scenario called name.
func Lookup(name string) (*harness.Scenario, error) {
	for _, build := range catalog {
		if sc := build(); sc.Name == name {
			return sc, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}

// preventedFrom expects the anomaly below level and no anomaly at level and
// above.
func preventedFrom(level domain.IsolationLevel) func(domain.IsolationLevel) domain.Verdict {
	return func(l domain.IsolationLevel) domain.Verdict {
		if l >= level {
			return domain.AnomalyPrevented
		}
		return domain.AnomalyObserved
	}
}
