package siardlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAffinityOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want Affinity
	}{
		{"INTEGER", AffinityInteger},
		{"INT", AffinityInteger},
		{"SMALLINT", AffinityInteger},
		{"BIGINT", AffinityInteger},
		{"BOOLEAN", AffinityInteger},
		{"BOOL", AffinityInteger},
		{"NUMERIC(10,2)", AffinityNumeric},
		{"DECIMAL(5)", AffinityNumeric},
		{"DEC(5)", AffinityNumeric},
		{"DEC (5)", AffinityNumeric},
		{"DOUBLE PRECISION", AffinityReal},
		{"FLOAT", AffinityReal},
		{"REAL", AffinityReal},
		{"BINARY LARGE OBJECT", AffinityBlob},
		{"VARBINARY(10)", AffinityBlob},
		{"BLOB", AffinityBlob},
		{"VARCHAR(32)", AffinityText},
		{"CHARACTER VARYING(8)", AffinityText},
		{"DATE", AffinityText},
		{"TIMESTAMP", AffinityText},
		{"XML", AffinityText},
		{"", AffinityText},
		// INT must match as a whole word only.
		{"POINT", AffinityText},
		{"INTERVAL YEAR", AffinityText},
	}
	m := newTypeMapper()
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, m.affinityOf(tt.in), "type %q", tt.in)
		})
	}
}

// The rules apply in order: an earlier category wins even when a later
// pattern also matches.
func TestAffinityOf_RuleOrder(t *testing.T) {
	t.Parallel()
	m := newTypeMapper()
	assert.Equal(t, AffinityInteger, m.affinityOf("BIGINT BLOB"))
	assert.Equal(t, AffinityNumeric, m.affinityOf("DECIMAL FLOAT"))
	assert.Equal(t, AffinityReal, m.affinityOf("FLOAT BINARY"))
}

func TestAffinityOf_Cached(t *testing.T) {
	t.Parallel()
	m := newTypeMapper()
	assert.Equal(t, AffinityInteger, m.affinityOf("INTEGER"))
	assert.Equal(t, AffinityInteger, m.affinityOf("INTEGER"))
	assert.Contains(t, m.cache, "INTEGER")
}
