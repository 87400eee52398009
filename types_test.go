package siardlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeAttribute_Category(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		attr TypeAttribute
		want Category
	}{
		{"simple", TypeAttribute{Type: "INTEGER"}, CatSimple},
		{"array wins over type", TypeAttribute{Type: "INTEGER", Cardinality: 3}, CatArray},
		{"array wins over ref", TypeAttribute{TypeSchema: "S", TypeName: "P", Cardinality: 2}, CatArray},
		{"udt ref", TypeAttribute{TypeSchema: "S", TypeName: "P"}, CatUDT},
		{"udt ref name only", TypeAttribute{TypeName: "P"}, CatUDT},
		{"distinct", TypeAttribute{Base: "VARCHAR(8)"}, CatDistinct},
		{"type wins over base", TypeAttribute{Type: "INTEGER", Base: "X"}, CatSimple},
		{"unknown", TypeAttribute{Name: "x"}, CatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.attr.Category())
		})
	}
}

func TestTypeTable_RegisterLookup(t *testing.T) {
	t.Parallel()
	tt := NewTypeTable()
	assert.Nil(t, tt.Lookup("S", "P"))

	tt.Register(&TypeNode{Schema: "S", Name: "P", Category: CatUDT})
	require.NotNil(t, tt.Lookup("S", "P"))
	assert.Equal(t, CatUDT, tt.Lookup("S", "P").Category)
	assert.Equal(t, 1, tt.Len())

	// Same name in another schema is a distinct key.
	assert.Nil(t, tt.Lookup("S2", "P"))

	// Reinsert overwrites without growing the table.
	tt.Register(&TypeNode{Schema: "S", Name: "P", Category: CatDistinct})
	assert.Equal(t, CatDistinct, tt.Lookup("S", "P").Category)
	assert.Equal(t, 1, tt.Len())
}

func TestTypeTable_RegisterArray(t *testing.T) {
	t.Parallel()
	tt := NewTypeTable()
	name := tt.RegisterArray("S", "ys", TypeAttribute{Name: "ys", Type: "INTEGER", Cardinality: 2})
	assert.Equal(t, "ARRAY2_ys_0", name)

	node := tt.Lookup("S", name)
	require.NotNil(t, node)
	assert.Equal(t, CatArray, node.Category)
	require.Len(t, node.Attributes, 1)
	assert.Equal(t, "INTEGER", node.Attributes[0].Type)
	assert.Equal(t, 2, node.Attributes[0].Cardinality)

	// The counter is global across the table, not per cardinality.
	name2 := tt.RegisterArray("S", "zs", TypeAttribute{Name: "zs", Type: "INTEGER", Cardinality: 5})
	assert.Equal(t, "ARRAY5_zs_1", name2)
}

func TestTypeTable_LiftArray(t *testing.T) {
	t.Parallel()
	tt := NewTypeTable()
	attr := TypeAttribute{Name: "ys", Type: "INTEGER", Cardinality: 2}
	name := tt.LiftArray("S", &attr)

	// The attribute is rewritten into a plain complex-type reference.
	assert.Equal(t, "", attr.Type)
	assert.Equal(t, 0, attr.Cardinality)
	assert.Equal(t, "S", attr.TypeSchema)
	assert.Equal(t, name, attr.TypeName)
	assert.Equal(t, CatUDT, attr.Category()) // reference category, not array

	// The lifted node still carries the element type and cardinality.
	node := tt.Lookup("S", name)
	require.NotNil(t, node)
	assert.Equal(t, 2, node.Attributes[0].Cardinality)
}

func TestTypeTable_LiftArray_ComplexElement(t *testing.T) {
	t.Parallel()
	tt := NewTypeTable()
	attr := TypeAttribute{Name: "ps", TypeSchema: "S", TypeName: "P", Cardinality: 4}
	name := tt.LiftArray("S2", &attr)

	node := tt.Lookup("S2", name)
	require.NotNil(t, node)
	assert.Equal(t, "S", node.Attributes[0].TypeSchema)
	assert.Equal(t, "P", node.Attributes[0].TypeName)
	assert.Equal(t, 4, node.Attributes[0].Cardinality)
	assert.Equal(t, "S2", attr.TypeSchema)
}
