// Package schema describes the entity types the save engine persists: their
// tables, columns, identifiers, unique keys, associations and logical-delete
// flag.
//
// # Defining Types
//
//	role := schema.Define("Role").
//	    Table("ROLE").
//	    ID(schema.Int("id").StorageKey("ID")).
//	    Fields(schema.String("name").StorageKey("NAME")).
//	    Assocs(schema.OneToMany("permissions", "Permission").MappedBy("role")).
//	    Key("name").
//	    Mixin(mixin.SoftDelete{}, mixin.Time{})
//
//	permission := schema.Define("Permission").
//	    Table("PERMISSION").
//	    ID(schema.Int("id").StorageKey("ID")).
//	    Fields(schema.String("name").StorageKey("NAME")).
//	    Assocs(schema.ManyToOne("role", "Role").StorageKey("ROLE_ID")).
//	    Key("name").
//	    Mixin(mixin.SoftDelete{}, mixin.Time{})
//
//	graph, err := schema.Compile(role, permission)
//
// Compile resolves association targets and back references and reports
// invalid metadata as a *cascade.ConfigurationError.
//
// # Property Order
//
// Every type exposes its properties in a fixed order: identifier fields,
// declared fields, mixin fields, then associations. Statements list columns
// in this order.
//
// # Associations
//
//   - ManyToOne: the owning side, holds the foreign key column.
//   - OneToMany: the inverse side, MappedBy names the child's ManyToOne.
//   - OneToOne: owning with StorageKey, inverse with MappedBy.
package schema
