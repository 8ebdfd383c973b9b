package generic

import (
	"slices"
	"strings"
	"sync"
)

// resources maps stored resource IDs ("Annual", "approved_hours") back to
// the concrete types their domain packages registered at init.
var resources = struct {
	sync.RWMutex
	byID map[string]ResourceType
}{byID: make(map[string]ResourceType)}

// RegisterResource makes r resolvable by its ID. Registering the same ID
// twice keeps the last type.
func RegisterResource(r ResourceType) {
	resources.Lock()
	resources.byID[r.ResourceID()] = r
	resources.Unlock()
}

// ResolveResource returns the registered type for id. IDs nobody
// registered come back as a NamedResource in the "unknown" domain so rows
// written by a newer build still load.
func ResolveResource(id string) ResourceType {
	resources.RLock()
	r, ok := resources.byID[id]
	resources.RUnlock()
	if ok {
		return r
	}
	return NamedResource{ID: id, Domain: "unknown"}
}

// ResourcesIn lists the registered types of one domain, ordered by ID.
func ResourcesIn(domain string) []ResourceType {
	resources.RLock()
	defer resources.RUnlock()
	var out []ResourceType
	for _, r := range resources.byID {
		if r.ResourceDomain() == domain {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b ResourceType) int { return strings.Compare(a.ResourceID(), b.ResourceID()) })
	return out
}

// NamedResource is a ResourceType with no domain package behind it.
type NamedResource struct {
	ID     string
	Domain string
}

func (r NamedResource) ResourceID() string     { return r.ID }
func (r NamedResource) ResourceDomain() string { return r.Domain }
