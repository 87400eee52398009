package siardlite

import (
	"bytes"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cellElem(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	return doc.Root()
}

func newFormatterTranslator() *Translator {
	return &Translator{
		types:      NewTypeTable(),
		mapper:     newTypeMapper(),
		seenTables: make(map[string]string),
	}
}

func format(tr *Translator, fn func(buf *bytes.Buffer)) string {
	var buf bytes.Buffer
	fn(&buf)
	return buf.String()
}

func TestFormatSimple(t *testing.T) {
	tr := newFormatterTranslator()

	tests := []struct {
		name    string
		aff     Affinity
		xml     string // empty means nil element
		textify bool
		want    string
	}{
		{"nil element", AffinityText, "", false, "''"},
		{"empty text", AffinityText, "<c1/>", false, "''"},
		{"integer raw", AffinityInteger, "<c1>42</c1>", false, "42"},
		{"real raw", AffinityReal, "<c1>3.5</c1>", false, "3.5"},
		{"numeric raw inside json", AffinityNumeric, "<c1>7</c1>", true, "7"},
		{"text quoted", AffinityText, "<c1>hi</c1>", false, "'hi'"},
		{"quote doubled", AffinityText, "<c1>O'Hara</c1>", false, "'O''Hara'"},
		{"blob affinity inline text", AffinityBlob, "<c1>raw</c1>", false, "'raw'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var el *etree.Element
			if tt.xml != "" {
				el = cellElem(t, tt.xml)
			}
			got := format(tr, func(buf *bytes.Buffer) {
				tr.formatSimple(buf, tt.aff, el, "", tt.textify)
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatComplex_UnknownTypeDelegatesAsSimple(t *testing.T) {
	tr := newFormatterTranslator()
	lobs := &LobFolders{byPath: map[string]folderEntry{}}
	el := cellElem(t, "<c1>hello</c1>")
	got := format(tr, func(buf *bytes.Buffer) {
		tr.formatComplex(buf, el, "", "VARCHAR(8)", 0, "/c", lobs)
	})
	assert.Equal(t, "'hello'", got)
}

func TestFormatComplex_Array(t *testing.T) {
	tr := newFormatterTranslator()
	lobs := &LobFolders{byPath: map[string]folderEntry{}}
	name := tr.types.RegisterArray("S", "xs", TypeAttribute{Name: "xs", Type: "INTEGER", Cardinality: 3})
	el := cellElem(t, "<c1><a1>1</a1><a3>3</a3></c1>")
	got := format(tr, func(buf *bytes.Buffer) {
		tr.formatComplex(buf, el, "S", name, 0, "/xs", lobs)
	})
	assert.Equal(t, "json_array(\n1,\n'',\n3)", got)
}

func TestFormatComplex_Distinct(t *testing.T) {
	tr := newFormatterTranslator()
	lobs := &LobFolders{byPath: map[string]folderEntry{}}
	tr.types.Register(&TypeNode{
		Schema:     "S",
		Name:       "Tag",
		Category:   CatDistinct,
		Attributes: []TypeAttribute{{Name: "Tag", Base: "INTEGER"}},
	})
	el := cellElem(t, "<c1>5</c1>")
	got := format(tr, func(buf *bytes.Buffer) {
		tr.formatComplex(buf, el, "S", "Tag", 0, "/t", lobs)
	})
	assert.Equal(t, "5", got)
}

func TestFormatComplex_UDTMissingMembers(t *testing.T) {
	tr := newFormatterTranslator()
	lobs := &LobFolders{byPath: map[string]folderEntry{}}
	tr.types.Register(&TypeNode{
		Schema:   "S",
		Name:     "P",
		Category: CatUDT,
		Attributes: []TypeAttribute{
			{Name: "x", Type: "INTEGER"},
			{Name: "y", Type: "VARCHAR(4)"},
		},
	})
	el := cellElem(t, "<c1><u2>hi</u2></c1>")
	got := format(tr, func(buf *bytes.Buffer) {
		tr.formatComplex(buf, el, "S", "P", 0, "/p", lobs)
	})
	assert.Equal(t, "json_object(\n'x', '',\n'y', 'hi')", got)
}

func TestFormatComplex_DepthLimit(t *testing.T) {
	tr := newFormatterTranslator()
	lobs := &LobFolders{byPath: map[string]folderEntry{}}
	tr.types.Register(&TypeNode{
		Schema:   "S",
		Name:     "R",
		Category: CatUDT,
		Attributes: []TypeAttribute{
			{Name: "next", TypeSchema: "S", TypeName: "R"},
		},
	})
	// Deeply self-nested content.
	xml := "<c1>"
	for i := 0; i < 70; i++ {
		xml += "<u1>"
	}
	for i := 0; i < 70; i++ {
		xml += "</u1>"
	}
	xml += "</c1>"
	el := cellElem(t, xml)
	got := format(tr, func(buf *bytes.Buffer) {
		tr.formatComplex(buf, el, "S", "R", 0, "/r", lobs)
	})
	assert.Contains(t, got, "''")
	assert.GreaterOrEqual(t, tr.Warnings(), 1)
}
