package siardlite

import (
	"strconv"

	"github.com/beevik/etree"
)

// Summary describes a SIARD archive from its metadata alone.
type Summary struct {
	DBName      string
	Version     string
	Description string
	Schemas     []SchemaSummary
}

type SchemaSummary struct {
	Name   string
	Folder string
	Tables []TableSummary
}

type TableSummary struct {
	Name    string
	Folder  string
	Columns int
	Rows    int64
}

// Summarize loads only header/metadata.xml (extracting just that member
// when the input is an archive) and reports the schema structure without
// translating any content.
func Summarize(siardURI string, opts ...Option) (*Summary, error) {
	// Metadata only: always extract file by file, whatever opts say.
	t, err := New(siardURI, append(opts, WithFullUnzip(false))...)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	root, err := t.loadMetadata()
	if err != nil {
		return nil, err
	}
	s := &Summary{
		DBName:      childText(root, "dbname"),
		Version:     root.SelectAttrValue("version", ""),
		Description: childText(root, "description"),
	}
	se := root.SelectElement("schemas")
	if se == nil {
		return s, nil
	}
	for _, sc := range se.SelectElements("schema") {
		ss := SchemaSummary{Name: childText(sc, "name"), Folder: childText(sc, "folder")}
		if te := sc.SelectElement("tables"); te != nil {
			for _, tb := range te.SelectElements("table") {
				ss.Tables = append(ss.Tables, TableSummary{
					Name:    childText(tb, "name"),
					Folder:  childText(tb, "folder"),
					Columns: countColumns(tb),
					Rows:    childInt64(tb, "rows"),
				})
			}
		}
		s.Schemas = append(s.Schemas, ss)
	}
	return s, nil
}

func countColumns(tableEl *etree.Element) int {
	if ce := tableEl.SelectElement("columns"); ce != nil {
		return len(ce.SelectElements("column"))
	}
	return 0
}

func childInt64(el *etree.Element, tag string) int64 {
	n, _ := strconv.ParseInt(childText(el, tag), 10, 64)
	return n
}
