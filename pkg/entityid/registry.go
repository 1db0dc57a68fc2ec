package entityid

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scope tells how the organization bucket of an entity is derived
type Scope string

const (
	// ScopeTenant entities are numbered within their organization; rows without one are skipped
	ScopeTenant Scope = "tenant"
	// ScopeSelf entities are organizations, numbered within themselves
	ScopeSelf Scope = "self"
	// ScopeGlobal entities have no organization and share GlobalBucket
	ScopeGlobal Scope = "global"
)

var (
	prefixPattern = regexp.MustCompile(`^[A-Z]{2,8}$`)
	tablePattern  = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// EntityType describes a kind of row that receives public IDs
type EntityType struct {
	Name            string `yaml:"name"`
	Prefix          string `yaml:"prefix"`
	Table           string `yaml:"table"`
	Scope           Scope  `yaml:"scope"`
	SkipSuperAdmins bool   `yaml:"skip_super_admins"`
}

func (t EntityType) validate() error {
	if t.Name == "" {
		return fmt.Errorf("entity type name is required")
	}
	if !prefixPattern.MatchString(t.Prefix) {
		return fmt.Errorf("entity type %s: prefix %q must be 2-8 uppercase letters", t.Name, t.Prefix)
	}
	if !tablePattern.MatchString(t.Table) {
		return fmt.Errorf("entity type %s: invalid table name %q", t.Name, t.Table)
	}
	switch t.Scope {
	case ScopeTenant, ScopeSelf, ScopeGlobal:
	default:
		return fmt.Errorf("entity type %s: unknown scope %q", t.Name, t.Scope)
	}
	return nil
}

// Bucket returns the organization under which a row is numbered. ok is
// false when the row cannot receive a public ID.
func (t EntityType) Bucket(orgID *int64, internalID int64) (int64, bool) {
	switch t.Scope {
	case ScopeSelf:
		return internalID, internalID != 0
	case ScopeGlobal:
		return GlobalBucket, true
	default:
		if orgID == nil {
			return 0, false
		}
		return *orgID, true
	}
}

// DefaultEntityTypes returns the built-in entity types
func DefaultEntityTypes() []EntityType {
	return []EntityType{
		{Name: "item", Prefix: "ITM", Table: "items", Scope: ScopeTenant},
		{Name: "location", Prefix: "LOC", Table: "locations", Scope: ScopeTenant},
		{Name: "supplier", Prefix: "SUP", Table: "suppliers", Scope: ScopeTenant},
		{Name: "stock", Prefix: "STK", Table: "stock", Scope: ScopeTenant},
		{Name: "maintenance", Prefix: "MNT", Table: "maintenances", Scope: ScopeTenant},
		{Name: "checkout", Prefix: "CHK", Table: "checkouts", Scope: ScopeTenant},
		{Name: "category", Prefix: "CAT", Table: "categories", Scope: ScopeTenant},
		{Name: "role", Prefix: "ROL", Table: "roles", Scope: ScopeTenant},
		{Name: "user", Prefix: "USR", Table: "users", Scope: ScopeTenant, SkipSuperAdmins: true},
		{Name: "organization", Prefix: "ORG", Table: "organizations", Scope: ScopeSelf},
		{Name: "plan", Prefix: "PLN", Table: "plans", Scope: ScopeGlobal},
	}
}

// Registry indexes entity types by name and by prefix
type Registry struct {
	byName   map[string]EntityType
	byPrefix map[string]EntityType
}

// NewRegistry builds a registry. Names and prefixes must be unique.
func NewRegistry(types ...EntityType) (*Registry, error) {
	r := &Registry{
		byName:   make(map[string]EntityType, len(types)),
		byPrefix: make(map[string]EntityType, len(types)),
	}
	for _, t := range types {
		if err := t.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate entity type %s", t.Name)
		}
		if other, dup := r.byPrefix[t.Prefix]; dup {
			return nil, fmt.Errorf("prefix %s used by both %s and %s", t.Prefix, other.Name, t.Name)
		}
		r.byName[t.Name] = t
		r.byPrefix[t.Prefix] = t
	}
	return r, nil
}

// DefaultRegistry returns a registry of the built-in entity types
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultEntityTypes()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the entity type with the given name
func (r *Registry) Lookup(name string) (EntityType, error) {
	t, ok := r.byName[name]
	if !ok {
		return EntityType{}, fmt.Errorf("%w: %s", ErrUnknownEntityType, name)
	}
	return t, nil
}

// ByPrefix returns the entity type rendered with prefix
func (r *Registry) ByPrefix(prefix string) (EntityType, error) {
	t, ok := r.byPrefix[prefix]
	if !ok {
		return EntityType{}, fmt.Errorf("%w: prefix %s", ErrUnknownEntityType, prefix)
	}
	return t, nil
}

// Types returns every entity type ordered by name
func (r *Registry) Types() []EntityType {
	types := make([]EntityType, 0, len(r.byName))
	for _, t := range r.byName {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	return types
}

type registryFile struct {
	EntityTypes []EntityType `yaml:"entity_types"`
}

// ParseRegistry reads YAML entity type definitions and merges them over the
// defaults. Entries with an existing name replace the default; omitted
// fields keep the default's value.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse entity types: %w", err)
	}

	merged := DefaultEntityTypes()
	index := make(map[string]int, len(merged))
	for i, t := range merged {
		index[t.Name] = i
	}

	for _, t := range file.EntityTypes {
		i, ok := index[t.Name]
		if !ok {
			if t.Scope == "" {
				t.Scope = ScopeTenant
			}
			index[t.Name] = len(merged)
			merged = append(merged, t)
			continue
		}
		base := merged[i]
		if t.Prefix != "" {
			base.Prefix = t.Prefix
		}
		if t.Table != "" {
			base.Table = t.Table
		}
		if t.Scope != "" {
			base.Scope = t.Scope
		}
		base.SkipSuperAdmins = base.SkipSuperAdmins || t.SkipSuperAdmins
		merged[i] = base
	}

	return NewRegistry(merged...)
}

// LoadRegistry reads entity type overrides from a YAML file
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity types file: %w", err)
	}
	return ParseRegistry(data)
}
