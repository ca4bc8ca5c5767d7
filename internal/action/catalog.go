package action

import (
	"sort"
	"sync"
)

// BuiltinCategory is the catalog category holding the composite actions.
const BuiltinCategory = "OpenDeck"

// Category groups definitions for display.
type Category struct {
	Name    string       `json:"name"`
	Icon    string       `json:"icon,omitempty"`
	Actions []Definition `json:"actions"`
}

// Catalog maps action uuids to definitions. Plugins register their
// manifest actions on load; the core only reads them.
//
// All methods are safe for concurrent use.
type Catalog struct {
	mu         sync.RWMutex
	categories map[string]*Category
	byUUID     map[string]Definition
}

// NewCatalog returns a catalog holding only the built-in composites.
func NewCatalog() *Catalog {
	c := &Catalog{
		categories: make(map[string]*Category),
		byUUID:     make(map[string]Definition),
	}
	c.Register(BuiltinCategory, "", Builtins()...)
	return c
}

// Register adds definitions to a category. A definition with a uuid
// already present replaces the earlier one.
func (c *Catalog) Register(category, icon string, defs ...Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, def := range defs {
		if _, exists := c.byUUID[def.UUID]; exists {
			c.removeLocked(def.UUID)
		}
	}

	cat, ok := c.categories[category]
	if !ok {
		cat = &Category{Name: category}
		c.categories[category] = cat
	}
	if icon != "" {
		cat.Icon = icon
	}

	for _, def := range defs {
		def = def.Clone()
		cat.Actions = append(cat.Actions, def)
		c.byUUID[def.UUID] = def
	}
}

// RemovePlugin drops every definition owned by plugin.
func (c *Catalog) RemovePlugin(plugin string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for uuid, def := range c.byUUID {
		if def.Plugin == plugin {
			c.removeLocked(uuid)
		}
	}
}

func (c *Catalog) removeLocked(uuid string) {
	delete(c.byUUID, uuid)
	for name, cat := range c.categories {
		kept := cat.Actions[:0]
		for _, def := range cat.Actions {
			if def.UUID != uuid {
				kept = append(kept, def)
			}
		}
		cat.Actions = kept
		if len(kept) == 0 && name != BuiltinCategory {
			delete(c.categories, name)
		}
	}
}

// Lookup returns a copy of the definition with uuid.
func (c *Catalog) Lookup(uuid string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.byUUID[uuid]
	if !ok {
		return Definition{}, false
	}
	return def.Clone(), true
}

// Has reports whether uuid is registered.
func (c *Catalog) Has(uuid string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.byUUID[uuid]
	return ok
}

// Categories returns a snapshot of all categories sorted by name.
func (c *Catalog) Categories() []Category {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Category, 0, len(c.categories))
	for _, cat := range c.categories {
		cpy := Category{Name: cat.Name, Icon: cat.Icon, Actions: make([]Definition, len(cat.Actions))}
		for n, def := range cat.Actions {
			cpy.Actions[n] = def.Clone()
		}
		out = append(out, cpy)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
