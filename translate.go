package siardlite

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	log "github.com/sirupsen/logrus"

	"github.com/jward/siardlite/internal/archive"
)

// Translator turns one SIARD archive into a SQL script. It owns the
// run-scoped state: the archive accessor with its workspace, the
// complex-type table, the affinity cache, and the duplicate-table and
// candidate-key counters. Construct one per translation.
type Translator struct {
	siardURI  string
	acc       *archive.Accessor
	types     *TypeTable
	mapper    *typeMapper
	filter    *regexp.Regexp
	verbose   int
	fullUnzip bool

	archiveLobFolder string
	seenTables       map[string]string // table name -> schema of first occurrence
	uniqueIdx        int               // spans schemas
	warnings         int
}

// Option configures a Translator.
type Option func(*Translator)

// WithSchemaFilter restricts the main pass to schemas whose name matches
// re (partial match). A nil re matches every schema.
func WithSchemaFilter(re *regexp.Regexp) Option {
	return func(t *Translator) {
		t.filter = re
	}
}

// WithVerbose sets the verbosity level. Above zero, comment lines
// surround the emitted statements.
func WithVerbose(v int) Option {
	return func(t *Translator) {
		t.verbose = v
	}
}

// WithFullUnzip extracts each opened archive entirely on first open
// instead of extracting members on demand.
func WithFullUnzip(full bool) Option {
	return func(t *Translator) {
		t.fullUnzip = full
	}
}

// CompileSchemaFilter compiles a case-insensitive schema filter. The
// empty expression matches all schemas and yields a nil regexp.
func CompileSchemaFilter(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schema filter %q: %w", expr, err)
	}
	return re, nil
}

// New creates a Translator for the SIARD at siardURI, which may be a
// .siard/.zip file or an exploded directory.
func New(siardURI string, opts ...Option) (*Translator, error) {
	if _, err := os.Stat(siardURI); err != nil {
		return nil, fmt.Errorf("SIARD input not found: %s", siardURI)
	}
	t := &Translator{
		siardURI:   siardURI,
		types:      NewTypeTable(),
		mapper:     newTypeMapper(),
		seenTables: make(map[string]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	mode := archive.FileByFile
	if t.fullUnzip {
		mode = archive.FullUnzip
	}
	acc, err := archive.New(mode)
	if err != nil {
		return nil, err
	}
	t.acc = acc
	return t, nil
}

// Close closes all cached archives and removes the workspace. Safe to
// call once.
func (t *Translator) Close() error {
	if t.acc == nil {
		return nil
	}
	err := t.acc.Teardown()
	t.acc = nil
	return err
}

// Warnings reports how many warnings the translation logged.
func (t *Translator) Warnings() int {
	return t.warnings
}

// Run translates the archive and writes the SQL script to w. Statement
// order is deterministic: schemas and tables as they appear in the
// metadata, each table's INSERTs after its CREATE TABLE and before its
// CREATE UNIQUE INDEX statements.
func (t *Translator) Run(w io.Writer) error {
	root, err := t.loadMetadata()
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(w, 1<<16)

	version := root.SelectAttrValue("version", "")
	t.archiveLobFolder = childText(root, "lobFolder")
	var schemas []*etree.Element
	if se := root.SelectElement("schemas"); se != nil {
		schemas = se.SelectElements("schema")
	}

	fmt.Fprintf(bw, "-- siard version=%s\n", version)
	fmt.Fprintf(bw, "-- no. of schemas=%d\n", len(schemas))

	// Pre-pass: register every complex type across all schemas first, so
	// udt attributes may reference types declared in later schemas.
	for _, s := range schemas {
		t.registerSchemaTypes(s)
	}

	for _, s := range schemas {
		name := childText(s, "name")
		if t.filter != nil && !t.filter.MatchString(name) {
			if t.verbose > 0 {
				fmt.Fprintf(bw, "-- skipping schema %s\n", name)
			}
			continue
		}
		if err := t.emitSchema(bw, s, name); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// loadMetadata resolves and parses header/metadata.xml, returning the
// siardArchive root element.
func (t *Translator) loadMetadata() (*etree.Element, error) {
	p, err := t.acc.Resolve(t.siardURI + "/header/metadata.xml")
	if err != nil {
		return nil, fmt.Errorf("locate metadata: %w", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "siardArchive" {
		return nil, fmt.Errorf("parse metadata: missing siardArchive root")
	}
	return root, nil
}

// registerSchemaTypes seeds the type table from one schema's <types>.
func (t *Translator) registerSchemaTypes(schemaEl *etree.Element) {
	schema := childText(schemaEl, "name")
	typesEl := schemaEl.SelectElement("types")
	if typesEl == nil {
		return
	}
	for _, te := range typesEl.SelectElements("type") {
		name := childText(te, "name")
		category := childText(te, "category")
		if name == "" || category == "" {
			continue
		}
		switch category {
		case "distinct":
			t.types.Register(&TypeNode{
				Schema:     schema,
				Name:       name,
				Category:   CatDistinct,
				Attributes: []TypeAttribute{{Name: name, Base: childText(te, "base")}},
			})
		case "udt":
			node := &TypeNode{Schema: schema, Name: name, Category: CatUDT}
			if attrsEl := te.SelectElement("attributes"); attrsEl != nil {
				for _, ae := range attrsEl.SelectElements("attribute") {
					attr := attributeFrom(ae)
					switch attr.Category() {
					case CatArray:
						t.types.LiftArray(schema, &attr)
					case CatDistinct:
						t.warn(log.Fields{"type": schema + "." + name, "attribute": attr.Name},
							"distinct-typed attribute in udt is not allowed by SIARD")
					}
					node.Attributes = append(node.Attributes, attr)
				}
			}
			t.types.Register(node)
		default:
			t.warn(log.Fields{"type": schema + "." + name, "category": category},
				"unknown type category")
		}
	}
}

// columnInfo gathers the per-column vectors the emitter works from.
type columnInfo struct {
	name     string
	attr     TypeAttribute
	affinity Affinity
	complex  bool
	lobs     *LobFolders
}

func (t *Translator) tableColumns(schema string, tableEl *etree.Element) []columnInfo {
	colsEl := tableEl.SelectElement("columns")
	if colsEl == nil {
		return nil
	}
	elems := colsEl.SelectElements("column")
	cols := make([]columnInfo, 0, len(elems))
	for i, ce := range elems {
		name := childText(ce, "name")
		if name == "" {
			// Positional column representation.
			name = fmt.Sprintf("c%d", i+1)
		}
		attr := attributeFrom(ce)
		attr.Name = name
		ci := columnInfo{
			name: name,
			lobs: newLobFolders(t.siardURI, name, ce, t.archiveLobFolder),
		}
		switch attr.Category() {
		case CatArray:
			t.types.LiftArray(schema, &attr)
			ci.complex = true
		case CatUDT, CatDistinct:
			ci.complex = true
		}
		if ci.complex {
			// Complex values flatten into JSON expressions.
			ci.affinity = AffinityText
		} else {
			ci.affinity = t.mapper.affinityOf(attr.Type)
		}
		ci.attr = attr
		cols = append(cols, ci)
	}
	return cols
}

func (t *Translator) emitSchema(bw *bufio.Writer, schemaEl *etree.Element, schema string) error {
	folder := childText(schemaEl, "folder")
	tablesEl := schemaEl.SelectElement("tables")
	if tablesEl == nil {
		return nil
	}
	if t.verbose > 0 {
		fmt.Fprintf(bw, "-- schema %s\n", schema)
	}
	for _, te := range tablesEl.SelectElements("table") {
		if err := t.emitTable(bw, schema, folder, te); err != nil {
			return err
		}
	}
	return nil
}

func (t *Translator) emitTable(bw *bufio.Writer, schema, schemaFolder string, tableEl *etree.Element) error {
	name := childText(tableEl, "name")
	folder := childText(tableEl, "folder")
	if owner, ok := t.seenTables[name]; ok {
		t.warn(log.Fields{"table": name, "schema": schema, "first": owner},
			"duplicate table name across schemas; keeping first occurrence")
		return nil
	}
	t.seenTables[name] = schema

	cols := t.tableColumns(schema, tableEl)

	if t.verbose > 0 {
		fmt.Fprintf(bw, "-- table %s.%s\n", schema, name)
	}
	fmt.Fprintf(bw, "CREATE TABLE %s (\n", quoteText(name))
	for i, c := range cols {
		if i > 0 {
			bw.WriteString(",\n")
		}
		fmt.Fprintf(bw, "%s %s", quoteText(c.name), c.affinity)
	}
	if pk := tableEl.SelectElement("primaryKey"); pk != nil {
		if pkCols := pk.SelectElements("column"); len(pkCols) > 0 {
			bw.WriteString(",\n   PRIMARY KEY (")
			for i, pc := range pkCols {
				if i > 0 {
					bw.WriteString(",")
				}
				bw.WriteString("\n   " + strings.TrimSpace(pc.Text()))
			}
			bw.WriteString(")")
		}
	}
	bw.WriteString(");\n")

	rows := 0
	if folder != "" && schemaFolder != "" {
		contentURI := t.siardURI + "/content/" + schemaFolder + "/" + folder + "/" + path.Base(folder) + ".xml"
		p, err := t.acc.Resolve(contentURI)
		if err != nil {
			log.WithField("table", name).Debug("no content file")
		} else if _, statErr := os.Stat(p); statErr == nil {
			rows = t.emitTableContent(bw, name, p, cols)
		}
	}
	if t.verbose > 0 {
		fmt.Fprintf(bw, "-- %d row(s) inserted into %s\n", rows, name)
	}

	if cks := tableEl.SelectElement("candidateKeys"); cks != nil {
		for _, ck := range cks.SelectElements("candidateKey") {
			ckCols := ck.SelectElements("column")
			if len(ckCols) == 0 {
				continue
			}
			fmt.Fprintf(bw, "CREATE UNIQUE INDEX unique_idx%d_%s ON %s (", t.uniqueIdx, childText(ck, "name"), name)
			t.uniqueIdx++
			for i, cc := range ckCols {
				if i > 0 {
					bw.WriteString(",")
				}
				bw.WriteString("\n  " + strings.TrimSpace(cc.Text()))
			}
			bw.WriteString(");\n")
		}
	}
	return nil
}

func (t *Translator) warn(fields log.Fields, msg string) {
	t.warnings++
	log.WithFields(fields).Warn(msg)
}

// attributeFrom reconstructs a TypeAttribute from a column or attribute
// metadata element.
func attributeFrom(el *etree.Element) TypeAttribute {
	return TypeAttribute{
		Name:        childText(el, "name"),
		Type:        childText(el, "type"),
		TypeSchema:  childText(el, "typeSchema"),
		TypeName:    childText(el, "typeName"),
		Cardinality: childInt(el, "cardinality"),
		Base:        childText(el, "base"),
	}
}

func childText(el *etree.Element, tag string) string {
	if el == nil {
		return ""
	}
	if c := el.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

func childInt(el *etree.Element, tag string) int {
	n, _ := strconv.Atoi(childText(el, tag))
	return n
}
