// Package archive resolves SIARD URIs whose path segments may cross
// .zip/.siard boundaries: /data/db.siard/content/lobs.zip/lob0 names the
// member lob0 of the archive lobs.zip, itself a member of db.siard.
// Opened archives are cached with a member index so that tens of
// thousands of small LOB reads amortize to O(1) lookups.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"archive/zip"

	"github.com/klauspost/compress/flate"
	log "github.com/sirupsen/logrus"
)

// Mode selects how archive members reach the filesystem.
type Mode int

const (
	// FileByFile extracts members lazily on demand.
	FileByFile Mode = iota
	// FullUnzip extracts the entire archive on first open.
	FullUnzip
)

// eagerDelete, when enabled, removes lazily extracted members as soon as
// the caller releases them instead of at workspace teardown. FileByFile
// mode only.
const eagerDelete = false

// safetyInfix must appear in the workspace realpath before Teardown will
// recursively delete it.
const safetyInfix = "siardlite-"

var (
	ErrArchiveNotFound = errors.New("archive not found")
	ErrEntryNotFound   = errors.New("entry not found in archive")
	ErrDecompression   = errors.New("decompression failed")
)

// Accessor resolves URIs through possibly nested archives, caching each
// opened archive until CloseAll. Not safe for concurrent use: translation
// is single-threaded by design.
type Accessor struct {
	workspace string
	mode      Mode
	cache     map[string]*zipHandle
	pending   []string // eager-delete candidates drained by CloseAll
	seq       int
}

type zipHandle struct {
	path          string
	rc            *zip.ReadCloser
	index         map[string]*zip.File
	destDir       string
	extracted     map[string]string
	extractedRoot string // non-empty in FullUnzip mode
}

// New creates an Accessor with a fresh workspace directory under TMPDIR
// (default /tmp).
func New(mode Mode) (*Accessor, error) {
	root := os.Getenv("TMPDIR")
	if root == "" {
		root = "/tmp"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root %s: %w", root, err)
	}
	ws, err := os.MkdirTemp(root, safetyInfix)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Accessor{
		workspace: ws,
		mode:      mode,
		cache:     make(map[string]*zipHandle),
	}, nil
}

// Workspace returns the per-run temporary directory.
func (a *Accessor) Workspace() string {
	return a.workspace
}

func isArchiveName(seg string) bool {
	lower := strings.ToLower(seg)
	return strings.HasSuffix(lower, ".zip") || strings.HasSuffix(lower, ".siard")
}

// Resolve maps uri to a concrete local path, extracting archive members
// into the workspace as needed. A uri with no archive segment returns
// verbatim. A directory whose name merely contains .zip is handled by
// try-extract-then-fallback: only a segment that stats as a regular file
// opens as an archive.
func (a *Accessor) Resolve(uri string) (string, error) {
	segs := strings.Split(uri, "/")
	for i, seg := range segs {
		if !isArchiveName(seg) {
			continue
		}
		outer := strings.Join(segs[:i+1], "/")
		fi, err := os.Stat(outer)
		if err != nil || fi.IsDir() {
			// Missing, or a real directory that happens to carry the
			// extension: keep scanning.
			continue
		}
		if i == len(segs)-1 {
			return outer, nil
		}
		h, err := a.open(outer)
		if err != nil {
			return "", err
		}
		return a.resolveMember(h, segs[i+1:])
	}
	return uri, nil
}

// resolveMember locates the member named by segs inside h. An inner
// segment with an archive extension that exists as a member is extracted
// and resolution recurses into it; one that does not exist is treated as
// a directory inside the archive and concatenated with the next segment.
func (a *Accessor) resolveMember(h *zipHandle, segs []string) (string, error) {
	for i := 0; i < len(segs)-1; i++ {
		if !isArchiveName(segs[i]) {
			continue
		}
		member := strings.Join(segs[:i+1], "/")
		if !a.hasMember(h, member) {
			continue
		}
		inner, err := a.extractMember(h, member)
		if err != nil {
			return "", err
		}
		return a.Resolve(inner + "/" + strings.Join(segs[i+1:], "/"))
	}
	return a.extractMember(h, strings.Join(segs, "/"))
}

func (a *Accessor) hasMember(h *zipHandle, member string) bool {
	member = strings.TrimPrefix(member, "/")
	if _, ok := h.index[member]; ok {
		return true
	}
	if h.extractedRoot != "" {
		_, err := os.Stat(filepath.Join(h.extractedRoot, filepath.FromSlash(member)))
		return err == nil
	}
	return false
}

// open returns the cached handle for path, opening and indexing the
// archive on first use. The member index is built in a single pass over
// the central directory.
func (a *Accessor) open(path string) (*zipHandle, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}
	if h, ok := a.cache[key]; ok {
		return h, nil
	}
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArchiveNotFound, path, err)
	}
	rc.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
	h := &zipHandle{
		path:      path,
		rc:        rc,
		index:     make(map[string]*zip.File, len(rc.File)),
		destDir:   filepath.Join(a.workspace, fmt.Sprintf("a%04d", a.seq)),
		extracted: make(map[string]string),
	}
	a.seq++
	for _, f := range rc.File {
		h.index[f.Name] = f
	}
	if a.mode == FullUnzip {
		if err := a.unzipAll(h); err != nil {
			rc.Close()
			return nil, err
		}
		h.extractedRoot = h.destDir
	}
	a.cache[key] = h
	log.WithField("archive", path).WithField("members", len(h.index)).Debug("opened archive")
	return h, nil
}

func (a *Accessor) unzipAll(h *zipHandle) error {
	for name, zf := range h.index {
		if strings.HasSuffix(name, "/") {
			continue
		}
		if _, err := a.writeMember(h, zf, name); err != nil {
			return err
		}
	}
	return nil
}

func (a *Accessor) extractMember(h *zipHandle, member string) (string, error) {
	member = strings.TrimPrefix(member, "/")
	if h.extractedRoot != "" {
		p := filepath.Join(h.extractedRoot, filepath.FromSlash(member))
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%w: %s in %s", ErrEntryNotFound, member, h.path)
		}
		return p, nil
	}
	if p, ok := h.extracted[member]; ok {
		return p, nil
	}
	zf, ok := h.index[member]
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrEntryNotFound, member, h.path)
	}
	p, err := a.writeMember(h, zf, member)
	if err != nil {
		return "", err
	}
	if eagerDelete {
		a.pending = append(a.pending, p)
	} else {
		h.extracted[member] = p
	}
	return p, nil
}

func (a *Accessor) writeMember(h *zipHandle, zf *zip.File, member string) (string, error) {
	dest := filepath.Join(h.destDir, filepath.FromSlash(member))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("extract %s: %w", member, err)
	}
	r, err := zf.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %s in %s: %v", ErrDecompression, member, h.path, err)
	}
	defer r.Close()
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", member, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("%w: %s in %s: %v", ErrDecompression, member, h.path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("extract %s: %w", member, err)
	}
	return dest, nil
}

// Release marks an extracted file as consumed. With eagerDelete enabled
// in FileByFile mode the file is removed immediately; otherwise it lives
// until Teardown.
func (a *Accessor) Release(path string) {
	if !eagerDelete || a.mode != FileByFile {
		return
	}
	if !strings.HasPrefix(path, a.workspace) {
		return
	}
	if err := os.Remove(path); err != nil {
		log.WithError(err).WithField("path", path).Warn("eager delete failed")
	}
}

// CloseAll closes every cached archive and drains the pending-delete set.
// Called exactly once at teardown.
func (a *Accessor) CloseAll() error {
	var first error
	for key, h := range a.cache {
		if err := h.rc.Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", h.path, err)
		}
		delete(a.cache, key)
	}
	for _, p := range a.pending {
		os.Remove(p)
	}
	a.pending = nil
	return first
}

// Teardown closes all archives and removes the workspace recursively.
// The delete is refused unless the workspace realpath contains the
// safety infix, so a misconfigured TMPDIR cannot take unrelated paths
// with it.
func (a *Accessor) Teardown() error {
	closeErr := a.CloseAll()
	real, err := filepath.EvalSymlinks(a.workspace)
	if err != nil {
		real = a.workspace
	}
	if !strings.Contains(filepath.Base(real), safetyInfix) {
		return fmt.Errorf("refusing to delete workspace %s: missing %q infix", real, safetyInfix)
	}
	if err := os.RemoveAll(real); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return closeErr
}
