package schema

// Field is the descriptor of a scalar field.
type Field struct {
	Name   string // Property name, also the JSON name.
	Column string // Column name. Defaults to the snake_case name.
	Kind   Kind   // Value kind.
}

// FieldBuilder builds a Field descriptor.
type FieldBuilder struct {
	desc *Field
}

// Descriptor implements the FieldDescriptor interface.
func (b *FieldBuilder) Descriptor() *Field {
	return b.desc
}

// StorageKey sets the column name of the field.
func (b *FieldBuilder) StorageKey(column string) *FieldBuilder {
	b.desc.Column = column
	return b
}

// FieldDescriptor is implemented by field builders.
type FieldDescriptor interface {
	Descriptor() *Field
}

func newField(name string, kind Kind) *FieldBuilder {
	return &FieldBuilder{desc: &Field{Name: name, Kind: kind}}
}

// String returns a new string field.
func String(name string) *FieldBuilder { return newField(name, KindString) }

// Int returns a new integer field. Values are stored as int64.
func Int(name string) *FieldBuilder { return newField(name, KindInt) }

// Float returns a new float field. Values are stored as float64.
func Float(name string) *FieldBuilder { return newField(name, KindFloat) }

// Bool returns a new boolean field.
func Bool(name string) *FieldBuilder { return newField(name, KindBool) }

// Time returns a new time.Time field.
func Time(name string) *FieldBuilder { return newField(name, KindTime) }

// Bytes returns a new []byte field.
func Bytes(name string) *FieldBuilder { return newField(name, KindBytes) }

// Any returns a new field stored without conversion.
func Any(name string) *FieldBuilder { return newField(name, KindAny) }
