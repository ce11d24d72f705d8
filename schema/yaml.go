package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type (
	yamlFile struct {
		Types []yamlType `yaml:"types"`
	}
	yamlType struct {
		Name           string      `yaml:"name"`
		Table          string      `yaml:"table"`
		ID             []yamlField `yaml:"id"`
		Fields         []yamlField `yaml:"fields"`
		Assocs         []yamlAssoc `yaml:"assocs"`
		Key            []string    `yaml:"key"`
		LogicalDeleted *struct {
			Field string `yaml:"field"`
			Value any    `yaml:"value"`
		} `yaml:"logicalDeleted"`
	}
	yamlField struct {
		Name   string `yaml:"name"`
		Column string `yaml:"column"`
		Kind   string `yaml:"kind"`
	}
	yamlAssoc struct {
		Name     string `yaml:"name"`
		Rel      string `yaml:"rel"`
		Target   string `yaml:"target"`
		Column   string `yaml:"column"`
		MappedBy string `yaml:"mappedBy"`
	}
)

// LoadYAML reads type definitions from YAML and compiles them.
//
//	types:
//	  - name: Role
//	    table: ROLE
//	    id: [{name: id, column: ID, kind: int}]
//	    fields: [{name: name, column: NAME, kind: string}]
//	    assocs: [{name: permissions, rel: one-to-many, target: Permission, mappedBy: role}]
//	    key: [name]
//	    logicalDeleted: {field: deleted, value: true}
func LoadYAML(r io.Reader) (*Graph, error) {
	var f yamlFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("schema: decode yaml: %w", err)
	}
	defs := make([]*Def, 0, len(f.Types))
	for _, yt := range f.Types {
		d := Define(yt.Name).Table(yt.Table).Key(yt.Key...)
		for _, yf := range yt.ID {
			b, err := yf.builder()
			if err != nil {
				return nil, err
			}
			d.ID(b)
		}
		for _, yf := range yt.Fields {
			b, err := yf.builder()
			if err != nil {
				return nil, err
			}
			d.Fields(b)
		}
		for _, ya := range yt.Assocs {
			rel, err := ParseRel(ya.Rel)
			if err != nil {
				return nil, err
			}
			d.Assocs(&AssocBuilder{desc: &Assoc{
				Name:       ya.Name,
				Rel:        rel,
				TargetName: ya.Target,
				Column:     ya.Column,
				MappedBy:   ya.MappedBy,
			}})
		}
		if ld := yt.LogicalDeleted; ld != nil {
			d.LogicalDeleted(ld.Field, ld.Value)
		}
		defs = append(defs, d)
	}
	return Compile(defs...)
}

func (f yamlField) builder() (*FieldBuilder, error) {
	kind, err := ParseKind(f.Kind)
	if err != nil {
		return nil, err
	}
	return newField(f.Name, kind).StorageKey(f.Column), nil
}
