package p115

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chenyanggao-clone/p115client/api"
	"github.com/chenyanggao-clone/p115client/p115err"
	"github.com/chenyanggao-clone/p115client/upload"
)

// FileSystem is the public facade (C8): mkdir/rename/move/copy/delete,
// stat and walk, layered on the path resolver (C7) and the upload
// engine (C5/C6).
type FileSystem struct {
	API    *api.Client
	Dirs   *DirCache
	Engine *upload.Engine
	Log    *logrus.Entry
}

// NewFileSystem wires a FileSystem from an already-constructed Client
// (see Session for the usual construction path).
func NewFileSystem(apiClient *api.Client, dirs *DirCache, engine *upload.Engine) *FileSystem {
	return &FileSystem{
		API:    apiClient,
		Dirs:   dirs,
		Engine: engine,
		Log:    logrus.WithField("component", "filesystem"),
	}
}

// List returns a directory's immediate children (§4.8).
func (fs *FileSystem) List(ctx context.Context, dirID uint64) ([]api.Node, error) {
	return fs.Dirs.List(ctx, dirID)
}

// Stat resolves a node's attributes by id (§4.8 "Resolve by id").
func (fs *FileSystem) Stat(ctx context.Context, id uint64) (api.Node, error) {
	self, _, err := fs.API.GetInfo(ctx, id)
	return self, err
}

// StatPath resolves a node's attributes by absolute path, composing
// C7's path resolver with Stat (a supplemented convenience not named by
// the core id-based API).
func (fs *FileSystem) StatPath(ctx context.Context, path string) (api.Node, error) {
	id, err := fs.Dirs.Resolve(ctx, path)
	if err != nil {
		return api.Node{}, err
	}
	return fs.Stat(ctx, id)
}

// ResolvePath resolves an absolute path to its id.
func (fs *FileSystem) ResolvePath(ctx context.Context, path string) (uint64, error) {
	return fs.Dirs.Resolve(ctx, path)
}

// Mkdir creates a directory under parentID and invalidates the
// parent's cached listing (§4.9 mkdir).
func (fs *FileSystem) Mkdir(ctx context.Context, parentID uint64, name string) (api.Node, error) {
	node, err := fs.API.Mkdir(ctx, parentID, name)
	if err != nil {
		return api.Node{}, err
	}
	fs.Dirs.Invalidate(parentID)
	return node, nil
}

// RenameOptions controls the rename facade's extension-change policy.
type RenameOptions struct {
	// AllowRetype lets an extension-changing rename of a file through to
	// the Service's rename endpoint instead of refusing it locally. No
	// fresh-upload-then-delete emulation is performed. Default (false)
	// refuses the rename outright.
	AllowRetype bool
}

// Rename renames a single node. If the new name changes a file's
// extension, the server itself refuses the rename; by default this
// facade mirrors that refusal locally. With AllowRetype set the request
// is sent as-is; the rename is never emulated (§4.9 "rename").
func (fs *FileSystem) Rename(ctx context.Context, id uint64, newName string, opts RenameOptions) error {
	node, err := fs.Stat(ctx, id)
	if err != nil {
		return err
	}
	if !node.IsDirectory && extensionChanged(node.Name, newName) && !opts.AllowRetype {
		return p115err.New(p115err.KindUnsupported, "rename: extension change refused without allow_retype")
	}
	if err := fs.API.Rename(ctx, id, newName); err != nil {
		return err
	}
	fs.Dirs.Invalidate(node.ParentID)
	if node.IsDirectory {
		// The old resolved path (and everything nested under it) is now
		// stale in the PathIndex; look it up by id rather than by the
		// bare name, since the PathIndex is keyed by full absolute path.
		fs.Dirs.InvalidateByID(id)
	}
	return nil
}

func extensionChanged(oldName, newName string) bool {
	return extOf(oldName) != extOf(newName)
}

func extOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i:]
		}
		if name[i] == '/' {
			break
		}
	}
	return ""
}

// Move moves a batch of ids to newParentID, invalidating every distinct
// source parent plus the destination (§4.9 "move"). The server refuses
// a move when the destination already has a child of the same name;
// this facade surfaces that as Unsupported/AlreadyExists rather than
// silently overwriting (§4.9 "caller must rename-then-move or pick
// overwrite" — overwrite is not automated here).
func (fs *FileSystem) Move(ctx context.Context, ids []uint64, newParentID uint64) error {
	parents := fs.distinctParents(ctx, ids)
	if err := fs.API.Move(ctx, ids, newParentID); err != nil {
		return err
	}
	for p := range parents {
		fs.Dirs.Invalidate(p)
	}
	fs.Dirs.Invalidate(newParentID)
	return nil
}

// Copy copies a batch of ids to newParentID; server-side and
// instantaneous (§4.9 "copy").
func (fs *FileSystem) Copy(ctx context.Context, ids []uint64, newParentID uint64) error {
	if err := fs.API.Copy(ctx, ids, newParentID); err != nil {
		return err
	}
	fs.Dirs.Invalidate(newParentID)
	return nil
}

// Delete moves a batch of ids to the recycle bin (§4.9 "delete").
// Permanent delete is out of scope (spec.md Non-goals).
func (fs *FileSystem) Delete(ctx context.Context, ids []uint64) error {
	parents := fs.distinctParents(ctx, ids)
	if err := fs.API.Delete(ctx, ids); err != nil {
		return err
	}
	for p := range parents {
		fs.Dirs.Invalidate(p)
	}
	return nil
}

func (fs *FileSystem) distinctParents(ctx context.Context, ids []uint64) map[uint64]struct{} {
	parents := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if node, err := fs.Stat(ctx, id); err == nil {
			parents[node.ParentID] = struct{}{}
		}
	}
	return parents
}

// GetDownloadURL negotiates a time-limited signed download URL plus the
// headers that must accompany the fetch (§4.9 "get-url").
func (fs *FileSystem) GetDownloadURL(ctx context.Context, pickCode string) (url string, headers map[string]string, expiry time.Time, err error) {
	return fs.API.DownloadURL(ctx, pickCode)
}

// Upload drives the full upload pipeline for a seekable source into
// parentID under fileName (§4.4 via C5/C6), invalidating the parent's
// cached listing on success (§4.8 "Any successful mutation ...
// invalidates the affected parent(s)").
func (fs *FileSystem) Upload(ctx context.Context, src upload.SeekableSource, parentID uint64, fileName, userID, userKey string) (upload.Result, error) {
	result, err := fs.Engine.Upload(ctx, src, parentID, fileName, userID, userKey)
	if err != nil {
		return upload.Result{}, err
	}
	fs.Dirs.Invalidate(parentID)
	return result, nil
}

// WalkFunc is called once per node visited by Walk.
type WalkFunc func(path string, node api.Node) error

// Walk lists dirID and every descendant directory depth-first, calling
// fn for each child encountered (a supplemented traversal convenience,
// not named by the core id-based API — §4.8's listing is id-scoped and
// single-level only).
func (fs *FileSystem) Walk(ctx context.Context, dirID uint64, basePath string, fn WalkFunc) error {
	children, err := fs.Dirs.List(ctx, dirID)
	if err != nil {
		return err
	}
	for _, child := range children {
		childPath := basePath + "/" + escapeSegment(child.Name)
		if err := fn(childPath, child); err != nil {
			return err
		}
		if child.IsDirectory {
			if err := fs.Walk(ctx, child.ID, childPath, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
