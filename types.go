package siardlite

import "fmt"

// Category classifies a SIARD type reference or registry entry.
type Category int

const (
	CatUnknown Category = iota
	CatSimple
	CatArray
	CatUDT
	CatDistinct
)

func (c Category) String() string {
	switch c {
	case CatSimple:
		return "simple"
	case CatArray:
		return "array"
	case CatUDT:
		return "udt"
	case CatDistinct:
		return "distinct"
	}
	return "unknown"
}

// TypeAttribute describes one typed slot: a table column, a udt attribute,
// or the synthetic element attribute of an array or distinct type.
type TypeAttribute struct {
	Name        string
	Type        string // simple SIARD type string, e.g. VARCHAR(32)
	TypeSchema  string // set when referring to a registered complex type
	TypeName    string
	Cardinality int    // non-zero only for arrays
	Base        string // non-empty only for distinct types
}

// Category derives the extended category of the attribute. The rules are
// ordered: cardinality wins over a simple type string, which wins over a
// complex-type reference, which wins over a distinct base.
func (a TypeAttribute) Category() Category {
	switch {
	case a.Cardinality > 0:
		return CatArray
	case a.Type != "":
		return CatSimple
	case a.TypeSchema != "" || a.TypeName != "":
		return CatUDT
	case a.Base != "":
		return CatDistinct
	}
	return CatUnknown
}

// TypeNode is one entry of the complex-type registry. Distinct and array
// nodes carry exactly one synthetic attribute (the base type and the
// element type respectively); udt nodes carry one attribute per field in
// declaration order.
type TypeNode struct {
	Schema     string
	Name       string
	Category   Category
	Attributes []TypeAttribute
}

type typeKey struct {
	schema, name string
}

// TypeTable maps (schema, name) to complex type descriptions. It is
// run-scoped: one table per translation, torn down with the Translator.
type TypeTable struct {
	nodes    map[typeKey]*TypeNode
	order    []typeKey
	inserted int
	arrays   int
}

// NewTypeTable returns an empty registry.
func NewTypeTable() *TypeTable {
	return &TypeTable{nodes: make(map[typeKey]*TypeNode)}
}

// Register inserts node under (node.Schema, node.Name). Reinserting the
// same key overwrites the previous entry but keeps its insertion slot.
func (t *TypeTable) Register(node *TypeNode) {
	key := typeKey{node.Schema, node.Name}
	if _, ok := t.nodes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.nodes[key] = node
	t.inserted++
}

// Lookup returns the node registered under (schema, name), or nil when the
// key is unknown. A nil result means the name is a simple SIARD base type
// to be resolved by the affinity mapper.
func (t *TypeTable) Lookup(schema, name string) *TypeNode {
	return t.nodes[typeKey{schema, name}]
}

// Len reports the number of registered types.
func (t *TypeTable) Len() int {
	return len(t.order)
}

// RegisterArray creates an array node in schema whose single attribute is
// elem (carrying the element's type reference and the cardinality) and
// returns the generated name. Generated names are disambiguated by a
// counter that is global across the table.
func (t *TypeTable) RegisterArray(schema, subname string, elem TypeAttribute) string {
	name := fmt.Sprintf("ARRAY%d_%s_%d", elem.Cardinality, subname, t.arrays)
	t.arrays++
	t.Register(&TypeNode{
		Schema:     schema,
		Name:       name,
		Category:   CatArray,
		Attributes: []TypeAttribute{elem},
	})
	return name
}

// LiftArray rewrites an array-category attribute in place: the element type
// is registered as a synthetic array node in schema, and the attribute
// becomes a plain reference to the generated (schema, name) with its
// cardinality and inline type cleared. Both column arrays and arrays
// nested inside udt attributes go through here, so the emitter can treat
// every non-simple reference uniformly via (TypeSchema, TypeName).
func (t *TypeTable) LiftArray(schema string, a *TypeAttribute) string {
	elem := TypeAttribute{
		Name:        a.Name,
		Type:        a.Type,
		TypeSchema:  a.TypeSchema,
		TypeName:    a.TypeName,
		Cardinality: a.Cardinality,
	}
	name := t.RegisterArray(schema, a.Name, elem)
	a.Type = ""
	a.Base = ""
	a.Cardinality = 0
	a.TypeSchema = schema
	a.TypeName = name
	return name
}
