package schema

// Mixin contributes fields to every type that uses it. Interceptors can be
// registered against a mixin name and then apply to all of those types.
type Mixin interface {
	MixinName() string
	Fields() []FieldDescriptor
}

// LogicalDeleter is implemented by mixins that declare the logical-delete
// flag of the types using them.
type LogicalDeleter interface {
	LogicalDeleted() *LogicalDeleted
}

// LogicalDeleted declares the field that marks a row as deleted. Rows whose
// flag equals Value are invisible to existence resolution.
type LogicalDeleted struct {
	Field string
	Value any // Defaults to true.
}

// Def is the builder of a type definition, consumed by Compile.
type Def struct {
	name    string
	table   string
	ids     []*Field
	fields  []*Field
	assocs  []*Assoc
	key     []string
	deleted *LogicalDeleted
	mixins  []Mixin
}

// Define starts the definition of the named entity type.
func Define(name string) *Def {
	return &Def{name: name}
}

// Name returns the type name.
func (d *Def) Name() string { return d.name }

// Table sets the table name.
func (d *Def) Table(name string) *Def {
	d.table = name
	return d
}

// ID sets the identifier fields. More than one field declares a composite id.
func (d *Def) ID(fields ...FieldDescriptor) *Def {
	for _, f := range fields {
		d.ids = append(d.ids, f.Descriptor())
	}
	return d
}

// Fields appends scalar fields.
func (d *Def) Fields(fields ...FieldDescriptor) *Def {
	for _, f := range fields {
		d.fields = append(d.fields, f.Descriptor())
	}
	return d
}

// Assocs appends associations.
func (d *Def) Assocs(assocs ...AssocDescriptor) *Def {
	for _, a := range assocs {
		d.assocs = append(d.assocs, a.Descriptor())
	}
	return d
}

// Key declares the unique key. Names may refer to scalar fields or to owning
// associations (their foreign key column).
func (d *Def) Key(names ...string) *Def {
	d.key = names
	return d
}

// LogicalDeleted declares the logical-delete flag field.
func (d *Def) LogicalDeleted(field string, value any) *Def {
	d.deleted = &LogicalDeleted{Field: field, Value: value}
	return d
}

// Mixin applies mixins. Their fields follow the declared fields.
func (d *Def) Mixin(mixins ...Mixin) *Def {
	d.mixins = append(d.mixins, mixins...)
	return d
}

// Property is one slot of a type: an id field, a scalar field or an
// association. Index is stable and used by drafts for their loaded bitmask.
type Property struct {
	Index int
	Name  string
	ID    bool
	Field *Field // nil for associations
	Assoc *Assoc // nil for fields
}

// Column returns the column backing the property, or "" for inverse
// associations.
func (p *Property) Column() string {
	switch {
	case p.Field != nil:
		return p.Field.Column
	case p.Assoc.Owning():
		return p.Assoc.Column
	default:
		return ""
	}
}

// Scalar reports whether the property is an id or scalar field.
func (p *Property) Scalar() bool { return p.Field != nil }

// Reference reports whether the property is an owning association.
func (p *Property) Reference() bool { return p.Assoc != nil && p.Assoc.Owning() }

// Inverse reports whether the property is an inverse association.
func (p *Property) Inverse() bool { return p.Assoc != nil && !p.Assoc.Owning() }

// Type is a compiled entity type.
type Type struct {
	Name    string
	Table   string
	Deleted *LogicalDeleted
	Mixins  []string

	props  []*Property
	ids    []*Property
	key    []*Property
	byName map[string]*Property
}

// Properties returns all properties in declaration order.
func (t *Type) Properties() []*Property { return t.props }

// Property returns the named property.
func (t *Type) Property(name string) (*Property, bool) {
	p, ok := t.byName[name]
	return p, ok
}

// IDs returns the identifier properties.
func (t *Type) IDs() []*Property { return t.ids }

// CompositeID reports whether the type has a composite identifier.
func (t *Type) CompositeID() bool { return len(t.ids) > 1 }

// Key returns the unique key properties, or nil if the type has no key.
func (t *Type) Key() []*Property { return t.key }

// HasMixin reports whether the type uses the named mixin.
func (t *Type) HasMixin(name string) bool {
	for _, m := range t.Mixins {
		if m == name {
			return true
		}
	}
	return false
}

// DeletedProperty returns the logical-delete flag property, if declared.
func (t *Type) DeletedProperty() (*Property, bool) {
	if t.Deleted == nil {
		return nil, false
	}
	return t.Property(t.Deleted.Field)
}

// String returns the type name.
func (t *Type) String() string { return t.Name }
