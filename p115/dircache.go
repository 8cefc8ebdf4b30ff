// Package p115 assembles the transport, crypto, upload, and caching
// layers into the public Session/FileSystem surface (C7, C8): path↔id
// resolution, an attribute cache with a caller-pluggable freshness
// predicate, and the mkdir/rename/move/copy/delete facade.
package p115

import (
	"context"
	"strings"
	"sync"

	"github.com/chenyanggao-clone/p115client/api"
	"github.com/chenyanggao-clone/p115client/p115err"
)

// VersionPredicate derives a comparable freshness token from a
// directory's own attributes. The default compares mtime; callers with
// a sharper signal (e.g. a server-side etag) may supply their own.
type VersionPredicate func(self api.Node) any

// DefaultVersionPredicate uses the directory's own mtime, matching
// §4.8's "default: the mtime field".
func DefaultVersionPredicate(self api.Node) any { return self.MTime }

// dirEntry is one AttrCache slot, keyed by directory id.
type dirEntry struct {
	version  any
	selfAttr api.Node
	children map[uint64]api.Node
	order    []uint64 // insertion order, for stable iteration
}

// DirCache resolves paths to ids and caches directory listings, each
// entry guarded against staleness by VersionPredicate (§4.8 "Cache
// policy"). One lock per directory id prevents duplicate listing
// storms under concurrent callers for the same directory (§4.8
// "Concurrency", §5 "Shared-resource policy").
type DirCache struct {
	api       *api.Client
	predicate VersionPredicate

	mu    sync.Mutex
	dirs  map[uint64]*dirEntry
	locks map[uint64]*sync.Mutex

	// pathIndex is the optional fast path of §4.8's PathIndex: a
	// resolved absolute path to its id, invalidated on any rename,
	// move, or delete that could affect it.
	pathMu    sync.Mutex
	pathIndex map[string]uint64
}

// NewDirCache builds a cache rooted at id 0 with the given freshness
// predicate; a nil predicate defaults to mtime comparison.
func NewDirCache(apiClient *api.Client, predicate VersionPredicate) *DirCache {
	if predicate == nil {
		predicate = DefaultVersionPredicate
	}
	return &DirCache{
		api:       apiClient,
		predicate: predicate,
		dirs:      make(map[uint64]*dirEntry),
		locks:     make(map[uint64]*sync.Mutex),
		pathIndex: map[string]uint64{"/": 0},
	}
}

func (d *DirCache) lockFor(id uint64) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[id]
	if !ok {
		l = &sync.Mutex{}
		d.locks[id] = l
	}
	return l
}

// List returns the full, version-checked listing of a directory,
// transparently paginating and re-listing on cache miss or staleness.
// A mid-iteration count change is treated as a listing error per §4.8
// ("the resolver must detect and error out on mid-iteration count
// changes rather than silently return a partial set") rather than
// returned as a partial page.
func (d *DirCache) List(ctx context.Context, dirID uint64) ([]api.Node, error) {
	lock := d.lockFor(dirID)
	lock.Lock()
	defer lock.Unlock()

	self, _, err := d.selfAttr(ctx, dirID)
	if err != nil {
		return nil, err
	}
	wantVersion := d.predicate(self)

	d.mu.Lock()
	entry, hit := d.dirs[dirID]
	d.mu.Unlock()
	if hit && entry.version == wantVersion {
		return snapshotChildren(entry), nil
	}

	children, err := d.fetchAll(ctx, dirID)
	if err != nil {
		return nil, err
	}

	entry = &dirEntry{version: wantVersion, selfAttr: self, children: make(map[uint64]api.Node, len(children))}
	for _, c := range children {
		entry.children[c.ID] = c
		entry.order = append(entry.order, c.ID)
	}
	d.mu.Lock()
	d.dirs[dirID] = entry
	d.mu.Unlock()

	return snapshotChildren(entry), nil
}

func (d *DirCache) selfAttr(ctx context.Context, dirID uint64) (api.Node, []api.Node, error) {
	if dirID == 0 {
		return api.Root(), nil, nil
	}
	return d.api.GetInfo(ctx, dirID)
}

func (d *DirCache) fetchAll(ctx context.Context, dirID uint64) ([]api.Node, error) {
	var all []api.Node
	offset := 0
	expectedTotal := -1
	for {
		page, err := d.api.List(ctx, dirID, offset, 0)
		if err != nil {
			return nil, err
		}
		if expectedTotal == -1 {
			expectedTotal = page.Total
		} else if page.Total != expectedTotal {
			return nil, p115err.New(p115err.KindRemoteError, "directory listing count changed mid-iteration")
		}
		all = append(all, page.Children...)
		offset += len(page.Children)
		if len(page.Children) == 0 || offset >= page.Total {
			break
		}
	}
	return all, nil
}

func snapshotChildren(e *dirEntry) []api.Node {
	out := make([]api.Node, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.children[id])
	}
	return out
}

// Invalidate drops a directory's cached listing, forcing the next List
// to re-fetch (§4.8 "Any successful mutation ... invalidates the
// affected parent(s)").
func (d *DirCache) Invalidate(dirID uint64) {
	d.mu.Lock()
	delete(d.dirs, dirID)
	d.mu.Unlock()
}

// InvalidatePath drops a single PathIndex entry and every entry nested
// under it, used after a rename/move of a directory subtree (§4.8).
func (d *DirCache) InvalidatePath(path string) {
	path = normalizePath(path)
	d.pathMu.Lock()
	defer d.pathMu.Unlock()
	for p := range d.pathIndex {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(d.pathIndex, p)
		}
	}
}

// InvalidateByID drops every PathIndex entry mapped to dirID, and
// everything nested under those entries, used when a mutation is
// expressed only as an id and the caller has no resolved path handy to
// pass to InvalidatePath directly (§4.8).
func (d *DirCache) InvalidateByID(dirID uint64) {
	d.pathMu.Lock()
	var paths []string
	for p, id := range d.pathIndex {
		if id == dirID {
			paths = append(paths, p)
		}
	}
	d.pathMu.Unlock()
	for _, p := range paths {
		d.InvalidatePath(p)
	}
}

// Resolve walks a "/"-separated absolute path to its id, consulting the
// PathIndex first and falling back to a listing-by-listing walk from
// the nearest cached ancestor (§4.8 "Resolve by path"). Sibling names
// are not guaranteed unique; the first match at each hop wins.
func (d *DirCache) Resolve(ctx context.Context, path string) (uint64, error) {
	path = normalizePath(path)
	if path == "/" {
		return 0, nil
	}

	d.pathMu.Lock()
	if id, ok := d.pathIndex[path]; ok {
		d.pathMu.Unlock()
		return id, nil
	}
	d.pathMu.Unlock()

	segments := splitEscapedPath(strings.Trim(path, "/"))
	currentID := uint64(0)
	currentPath := ""
	startAt := 0
	prefix := ""
	d.pathMu.Lock()
	for i := 0; i < len(segments)-1; i++ {
		prefix += "/" + escapeSegment(segments[i])
		if id, ok := d.pathIndex[prefix]; ok {
			currentID, currentPath, startAt = id, prefix, i+1
		}
	}
	d.pathMu.Unlock()
	for _, seg := range segments[startAt:] {
		children, err := d.List(ctx, currentID)
		if err != nil {
			return 0, err
		}
		var next *api.Node
		for i := range children {
			if children[i].Name == seg {
				next = &children[i]
				break
			}
		}
		if next == nil {
			return 0, p115err.New(p115err.KindNotFound, "path not found: "+path)
		}
		currentID = next.ID
		currentPath += "/" + escapeSegment(seg)
	}

	d.pathMu.Lock()
	d.pathIndex[path] = currentID
	d.pathMu.Unlock()
	return currentID, nil
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		return "/"
	}
	return path
}

// escapeSegment/unescapeSegment implement §4.8's escape convention for
// literal "/" inside a display name.
func escapeSegment(seg string) string {
	return strings.ReplaceAll(seg, "/", `\/`)
}

func unescapeSegment(seg string) string {
	return strings.ReplaceAll(seg, `\/`, "/")
}

// splitEscapedPath splits a trimmed path on unescaped "/" boundaries,
// treating a backslash-escaped slash as literal within a segment, then
// unescapes each resulting segment.
func splitEscapedPath(path string) []string {
	var segments []string
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == '/':
			segments = append(segments, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	segments = append(segments, cur.String())
	return segments
}
