package siardlite

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/beevik/etree"
	log "github.com/sirupsen/logrus"
)

// maxFormatterDepth bounds complex-type recursion. SIARD does not define
// cyclic type graphs but they are possible to construct.
const maxFormatterDepth = 64

// emitTableContent parses the table's content XML and emits one INSERT
// INTO per row. A file that fails to parse yields a warning and zero
// rows; the table's CREATE TABLE has already been emitted.
func (t *Translator) emitTableContent(bw *bufio.Writer, tableName, xmlPath string, cols []columnInfo) int {
	data, err := os.ReadFile(xmlPath)
	if err != nil {
		t.warn(log.Fields{"table": tableName, "path": xmlPath}, "cannot read table content")
		return 0
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		t.warn(log.Fields{"table": tableName, "path": xmlPath}, "cannot parse table content")
		return 0
	}
	root := doc.Root()
	if root == nil {
		return 0
	}
	t.acc.Release(xmlPath)

	var cell bytes.Buffer
	rows := 0
	for _, row := range root.SelectElements("row") {
		bw.WriteString("INSERT INTO ")
		bw.WriteString(quoteText(tableName))
		bw.WriteString(" VALUES (\n")
		for i, col := range cols {
			if i > 0 {
				bw.WriteString(",\n")
			}
			cell.Reset()
			el := row.SelectElement(fmt.Sprintf("c%d", i+1))
			if col.complex {
				t.formatComplex(&cell, el, col.attr.TypeSchema, col.attr.TypeName, 0, "/"+col.name, col.lobs)
			} else {
				t.formatSimple(&cell, col.affinity, el, col.lobs.Lookup("/"+col.name), false)
			}
			bw.Write(cell.Bytes())
		}
		bw.WriteString(");\n")
		rows++
	}
	return rows
}

// formatSimple appends the literal for a simple-typed cell. folder is the
// column's resolved lobFolder for this position ("" when none applies);
// textify forces a TEXT cast for byte payloads, which is always the case
// inside JSON wrappers.
func (t *Translator) formatSimple(buf *bytes.Buffer, aff Affinity, el *etree.Element, folder string, textify bool) {
	if el == nil {
		buf.WriteString("''")
		return
	}
	if file := el.SelectAttrValue("file", ""); file != "" {
		t.appendLOB(buf, t.lobURI(folder, file), aff == AffinityText || textify)
		return
	}
	text := el.Text()
	if text == "" {
		buf.WriteString("''")
		return
	}
	switch aff {
	case AffinityInteger, AffinityReal, AffinityNumeric:
		buf.WriteString(text)
		return
	}
	if !needsDecode(text) {
		buf.WriteString(quoteText(text))
		return
	}
	// The decoded payload may contain 0x00; it must travel as a blob.
	buf.WriteString(castBlobAsText(decodeEscapes(text)))
}

// formatComplex appends the literal for a cell (or nested value) whose
// declared type is (schema, name). Unknown names resolve as simple base
// types with textify forced.
func (t *Translator) formatComplex(buf *bytes.Buffer, el *etree.Element, schema, name string, depth int, treePath string, lobs *LobFolders) {
	if depth > maxFormatterDepth {
		t.warn(log.Fields{"type": schema + "." + name}, "complex type nesting exceeds depth limit")
		buf.WriteString("''")
		return
	}
	node := t.types.Lookup(schema, name)
	if node == nil {
		t.formatSimple(buf, t.mapper.affinityOf(name), el, lobs.Lookup(treePath), true)
		return
	}
	switch node.Category {
	case CatDistinct:
		// The base is assumed simple.
		t.formatComplex(buf, el, "", node.Attributes[0].Base, depth+1, treePath, lobs)
	case CatArray:
		elem := node.Attributes[0]
		innerSchema, innerName := elem.TypeSchema, elem.TypeName
		if elem.Type != "" {
			innerSchema, innerName = "", elem.Type
		}
		buf.WriteString("json_array(\n")
		for i := 1; i <= elem.Cardinality; i++ {
			if i > 1 {
				buf.WriteString(",\n")
			}
			tag := fmt.Sprintf("a%d", i)
			var child *etree.Element
			if el != nil {
				child = el.SelectElement(tag)
			}
			if child == nil {
				buf.WriteString("''")
				continue
			}
			t.formatComplex(buf, child, innerSchema, innerName, depth+1, treePath+"/"+tag, lobs)
		}
		buf.WriteString(")")
	case CatUDT:
		buf.WriteString("json_object(\n")
		for k, attr := range node.Attributes {
			if k > 0 {
				buf.WriteString(",\n")
			}
			buf.WriteString(quoteText(attr.Name))
			buf.WriteString(", ")
			var child *etree.Element
			if el != nil {
				child = el.SelectElement(fmt.Sprintf("u%d", k+1))
			}
			if child == nil {
				buf.WriteString("''")
				continue
			}
			innerSchema, innerName := attr.TypeSchema, attr.TypeName
			if attr.Type != "" {
				innerSchema, innerName = "", attr.Type
			}
			t.formatComplex(buf, child, innerSchema, innerName, depth+1, treePath+"/"+attr.Name, lobs)
		}
		buf.WriteString(")")
	}
}

// lobURI joins a cell's file attribute against the column's resolved
// lobFolder, or against the archive URI when no folder applies.
func (t *Translator) lobURI(folder, file string) string {
	if folder == "" {
		return path.Clean(t.siardURI + "/" + file)
	}
	return path.Clean(folder + "/" + file)
}

// appendLOB resolves lobURI through the archive accessor and streams the
// file into the buffer as a blob literal, 10 KiB blocks at a time. An
// unreadable LOB degrades to an empty blob with a warning; the row
// continues.
func (t *Translator) appendLOB(buf *bytes.Buffer, lobURI string, asText bool) {
	if asText {
		buf.WriteString("CAST(")
	}
	buf.WriteString("X'")
	p, err := t.acc.Resolve(lobURI)
	var f *os.File
	if err == nil {
		f, err = os.Open(p)
	}
	if err != nil {
		t.warn(log.Fields{"lob": lobURI}, "cannot read lob; emitting empty blob")
	} else {
		block := make([]byte, 10*1024)
		for {
			n, rerr := f.Read(block)
			if n > 0 {
				writeHex(buf, block[:n])
			}
			if rerr != nil {
				if rerr != io.EOF {
					t.warn(log.Fields{"lob": lobURI}, "lob read failed; blob truncated")
				}
				break
			}
		}
		f.Close()
		t.acc.Release(p)
	}
	buf.WriteString("'")
	if asText {
		buf.WriteString(" AS TEXT)")
	}
}
