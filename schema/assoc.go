package schema

import "fmt"

// Rel is the kind of an association.
type Rel uint8

// Association kinds.
const (
	M2O Rel = iota + 1 // many-to-one, owning side
	O2M                // one-to-many, inverse side
	O2O                // one-to-one, owning or inverse
)

// String returns the relation name.
func (r Rel) String() string {
	switch r {
	case M2O:
		return "many-to-one"
	case O2M:
		return "one-to-many"
	case O2O:
		return "one-to-one"
	default:
		return fmt.Sprintf("Rel(%d)", r)
	}
}

// ParseRel returns the relation for the given name.
func ParseRel(s string) (Rel, error) {
	switch s {
	case "many-to-one", "m2o":
		return M2O, nil
	case "one-to-many", "o2m":
		return O2M, nil
	case "one-to-one", "o2o":
		return O2O, nil
	default:
		return 0, fmt.Errorf("schema: unknown association kind %q", s)
	}
}

// Assoc is the descriptor of an association.
type Assoc struct {
	Name       string
	Rel        Rel
	TargetName string
	// Column is the foreign key column held by the owning side.
	Column string
	// MappedBy names the owning association on the target type.
	MappedBy string

	// Resolved by Compile.
	Target  *Type
	Inverse *Assoc // owning association on Target, for inverse sides
}

// Owning reports whether the declaring type holds the foreign key.
func (a *Assoc) Owning() bool {
	return a.Rel == M2O || (a.Rel == O2O && a.MappedBy == "")
}

// Many reports whether the association holds a list of targets.
func (a *Assoc) Many() bool {
	return a.Rel == O2M
}

// AssocBuilder builds an Assoc descriptor.
type AssocBuilder struct {
	desc *Assoc
}

// Descriptor implements the AssocDescriptor interface.
func (b *AssocBuilder) Descriptor() *Assoc {
	return b.desc
}

// StorageKey sets the foreign key column of an owning association.
func (b *AssocBuilder) StorageKey(column string) *AssocBuilder {
	b.desc.Column = column
	return b
}

// MappedBy marks the association as the inverse of the named owning
// association on the target type.
func (b *AssocBuilder) MappedBy(name string) *AssocBuilder {
	b.desc.MappedBy = name
	return b
}

// AssocDescriptor is implemented by association builders.
type AssocDescriptor interface {
	Descriptor() *Assoc
}

// ManyToOne returns an owning association to the target type.
func ManyToOne(name, target string) *AssocBuilder {
	return &AssocBuilder{desc: &Assoc{Name: name, Rel: M2O, TargetName: target}}
}

// OneToMany returns an inverse association to the target type. It must be
// completed with MappedBy.
func OneToMany(name, target string) *AssocBuilder {
	return &AssocBuilder{desc: &Assoc{Name: name, Rel: O2M, TargetName: target}}
}

// OneToOne returns a one-to-one association to the target type. It is the
// owning side unless MappedBy is set.
func OneToOne(name, target string) *AssocBuilder {
	return &AssocBuilder{desc: &Assoc{Name: name, Rel: O2O, TargetName: target}}
}
