package siardlite

import (
	"path"
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

type folderEntry struct {
	declared    string
	accumulated string
	canonical   string
}

// LobFolders indexes the lobFolder declarations in effect for one column,
// keyed by dotted tree-path: "" for the archive-wide folder, "/col" for
// the column itself, "/col/field" and "/col/aN" for nested udt fields and
// array elements.
type LobFolders struct {
	siardURI string
	byPath   map[string]folderEntry
}

var arraySuffixRe = regexp.MustCompile(`\[(\d+)\]$`)

// newLobFolders walks a column's metadata element and its descendant
// <fields> tree, accumulating declared lobFolder values down the tree.
// archiveFolder is the archive-wide lobFolder, seeded under the "" path.
func newLobFolders(siardURI, columnName string, column *etree.Element, archiveFolder string) *LobFolders {
	lf := &LobFolders{siardURI: siardURI, byPath: make(map[string]folderEntry)}
	rootAccum := ""
	if archiveFolder != "" {
		rootAccum = stripFileScheme(archiveFolder)
		lf.store("", archiveFolder, rootAccum)
	}
	declared := childText(column, "lobFolder")
	accum := combineFolders(rootAccum, declared)
	colPath := "/" + columnName
	if accum != "" {
		lf.store(colPath, declared, accum)
	}
	lf.walkFields(column.SelectElement("fields"), colPath, accum)
	return lf
}

func (lf *LobFolders) walkFields(fields *etree.Element, treePath, parentAccum string) {
	if fields == nil {
		return
	}
	for _, f := range fields.SelectElements("field") {
		name := fieldName(childText(f, "name"))
		if name == "" {
			continue
		}
		declared := childText(f, "lobFolder")
		accum := combineFolders(parentAccum, declared)
		p := treePath + "/" + name
		if accum != "" {
			lf.store(p, declared, accum)
		}
		lf.walkFields(f.SelectElement("fields"), p, accum)
	}
}

// fieldName rewrites an array field name with suffix [N] to aN, matching
// the <aN> tags used in content XML.
func fieldName(name string) string {
	if m := arraySuffixRe.FindStringSubmatch(name); m != nil {
		return "a" + m[1]
	}
	return name
}

func (lf *LobFolders) store(treePath, declared, accum string) {
	lf.byPath[treePath] = folderEntry{
		declared:    declared,
		accumulated: accum,
		canonical:   canonicalFolder(lf.siardURI, accum),
	}
}

// Lookup returns the canonical folder in effect at treePath, or "" when
// no lobFolder applies there.
func (lf *LobFolders) Lookup(treePath string) string {
	return lf.byPath[treePath].canonical
}

// combineFolders computes accumulated = parent combined with declared:
// an absolute declared folder replaces the parent; an empty side yields
// the other; otherwise the two join with a slash.
func combineFolders(parent, declared string) string {
	declared = stripFileScheme(declared)
	switch {
	case strings.HasPrefix(declared, "/"):
		return declared
	case parent == "":
		return declared
	case declared == "":
		return parent
	}
	return parent + "/" + declared
}

// stripFileScheme treats a URI-style folder (file://...) as absolute:
// the scheme is dropped and the remainder anchored at /. Remote hosts are
// not supported.
func stripFileScheme(folder string) string {
	rest, ok := strings.CutPrefix(folder, "file://")
	if !ok {
		return folder
	}
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return rest
}

// canonicalFolder joins accumulated against the SIARD URI and cleans the
// result syntactically. No symlink resolution: the target may sit inside
// an archive member that has not been extracted yet.
func canonicalFolder(siardURI, accumulated string) string {
	if accumulated == "" {
		return ""
	}
	if strings.HasPrefix(accumulated, "/") {
		return path.Clean(accumulated)
	}
	return path.Clean(siardURI + "/" + accumulated)
}
