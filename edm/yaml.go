package edm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	odatajson "github.com/reoring/odatajson"
)

// yamlSchema is one YAML document. Unqualified names are qualified with
// Namespace; primitive names may omit the Edm prefix.
//
//	namespace: NS
//	types:
//	  - name: Customer
//	    kind: entity
//	    open: true
//	    properties:
//	      - {name: ID, type: Int32, nullable: false}
//	      - {name: Tags, type: Collection(String)}
//	enums:
//	  - {name: Color, members: [Red, Green]}
//	terms:
//	  - {name: Stamp, type: DateTimeOffset}
type yamlSchema struct {
	Namespace string         `yaml:"namespace"`
	Types     []yamlType     `yaml:"types"`
	Enums     []yamlEnum     `yaml:"enums"`
	Terms     []yamlProperty `yaml:"terms"`
}

type yamlType struct {
	Name       string         `yaml:"name"`
	Kind       string         `yaml:"kind"`
	Base       string         `yaml:"base"`
	Open       bool           `yaml:"open"`
	Properties []yamlProperty `yaml:"properties"`
}

type yamlEnum struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

type yamlProperty struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable *bool  `yaml:"nullable"`
}

// LoadYAML builds a Schema from one or more YAML documents. Types are
// registered before properties and terms are resolved, so references may
// point forward or across documents.
func LoadYAML(data []byte) (*Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var docs []yamlSchema
	for {
		var doc yamlSchema
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, odatajson.NewError(odatajson.CodeInvalidModel, "detail", err.Error()).WithCause(err)
		}
		docs = append(docs, doc)
	}

	s := NewSchema()
	for _, doc := range docs {
		for _, t := range doc.Types {
			kind := KindComplex
			switch strings.ToLower(t.Kind) {
			case "", "complex":
			case "entity":
				kind = KindEntity
			default:
				return nil, odatajson.NewError(odatajson.CodeInvalidModel, "detail", fmt.Sprintf("type %s: unknown kind %q", t.Name, t.Kind))
			}
			st := &StructuredType{Name: qualify(doc.Namespace, t.Name), Kind: kind, Open: t.Open}
			if t.Base != "" {
				st.Base = qualify(doc.Namespace, t.Base)
			}
			if err := s.AddStructuredType(st); err != nil {
				return nil, err
			}
		}
		for _, e := range doc.Enums {
			if err := s.AddEnumType(qualify(doc.Namespace, e.Name), e.Members...); err != nil {
				return nil, err
			}
		}
	}

	for _, doc := range docs {
		for _, t := range doc.Types {
			st, _ := s.LookupStructuredType(qualify(doc.Namespace, t.Name))
			for _, p := range t.Properties {
				ref, err := s.resolveYAML(doc.Namespace, p)
				if err != nil {
					return nil, err
				}
				if _, dup := st.Properties[p.Name]; dup {
					return nil, odatajson.NewError(odatajson.CodeInvalidModel, "detail", fmt.Sprintf("type %s: property %s defined twice", st.Name, p.Name))
				}
				st.Properties[p.Name] = ref
			}
		}
		for _, term := range doc.Terms {
			ref, err := s.resolveYAML(doc.Namespace, term)
			if err != nil {
				return nil, err
			}
			if err := s.AddTerm(qualify(doc.Namespace, term.Name), ref); err != nil {
				return nil, err
			}
		}
	}
	for name, st := range s.structured {
		if st.Base != "" {
			if _, ok := s.structured[st.Base]; !ok {
				return nil, odatajson.NewError(odatajson.CodeInvalidModel, "detail", fmt.Sprintf("type %s: unknown base %s", name, st.Base))
			}
		}
	}
	return s, nil
}

func (s *Schema) resolveYAML(ns string, p yamlProperty) (*TypeRef, error) {
	if p.Name == "" || p.Type == "" {
		return nil, odatajson.NewError(odatajson.CodeInvalidModel, "detail", "property and term entries need name and type")
	}
	nullable := true
	if p.Nullable != nil {
		nullable = *p.Nullable
	}
	return s.Ref(qualifyType(ns, p.Type), nullable)
}

func qualifyType(ns, name string) string {
	if elem := odatajson.ElementTypeName(name); elem != "" {
		return odatajson.CollectionTypeName(qualifyType(ns, elem))
	}
	if name == "Untyped" {
		return "Edm.Untyped"
	}
	if k, ok := odatajson.PrimitiveKindOf(name); ok && !strings.Contains(strings.TrimPrefix(name, "Edm."), ".") {
		return k.TypeName()
	}
	return qualify(ns, name)
}

func qualify(ns, name string) string {
	if ns == "" || strings.Contains(name, ".") {
		return name
	}
	return ns + "." + name
}
