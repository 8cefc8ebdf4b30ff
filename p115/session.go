package p115

import (
	"context"
	"net/url"

	"github.com/chenyanggao-clone/p115client/api"
	"github.com/chenyanggao-clone/p115client/upload"
)

// Session binds cookies, the harvested user_id/user_key pair, and
// every wired subsystem into the single entry point the public API
// exposes as `new_client(cookies) → Client` (§6).
type Session struct {
	Transport *api.Transport
	API       *api.Client
	OSS       *api.OSSClient
	STS       *upload.STSCache
	Multipart *upload.MultipartDriver
	Engine    *upload.Engine
	Dirs      *DirCache
	FS        *FileSystem

	UserID  string
	UserKey string
}

// NewSession builds a Session from a login cookie bundle (UID/CID/SEID,
// §6 "Auth surface") and an STS credential provider, which the caller
// typically implements as a thin wrapper over the Service's
// upload-credential endpoint.
func NewSession(ctx context.Context, cookies map[string]string, userID, userKey string, stsProvider upload.STSProvider, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	transport, err := api.NewTransport(cfg.timeout)
	if err != nil {
		return nil, err
	}
	transport.Retries = cfg.retries

	base, _ := url.Parse("https://" + cfg.serviceDomain)
	transport.SeedCookies(base, cookies)

	apiClient, err := api.NewClient(transport)
	if err != nil {
		return nil, err
	}

	ossClient := api.NewOSSClient(transport, cfg.ossScheme, cfg.ossEndpointHost)
	stsCache := upload.NewSTSCache(stsProvider)
	multipart := upload.NewMultipartDriver(ossClient, stsCache)
	multipart.Concurrency = cfg.uploadConcurrency

	engine := upload.NewEngine(apiClient, multipart)
	engine.PartSize = cfg.partSize

	dirs := NewDirCache(apiClient, cfg.versionPredicate)
	fs := NewFileSystem(apiClient, dirs, engine)

	return &Session{
		Transport: transport,
		API:       apiClient,
		OSS:       ossClient,
		STS:       stsCache,
		Multipart: multipart,
		Engine:    engine,
		Dirs:      dirs,
		FS:        fs,
		UserID:    userID,
		UserKey:   userKey,
	}, nil
}

// Upload is a convenience that threads the session's own user_id/key
// through FileSystem.Upload, matching the public `upload(source,
// parent_id, name, opts) → node | checkpoint-on-abort` surface (§6).
func (s *Session) Upload(ctx context.Context, src upload.SeekableSource, parentID uint64, fileName string) (upload.Result, error) {
	return s.FS.Upload(ctx, src, parentID, fileName, s.UserID, s.UserKey)
}

// ResumeUpload continues an interrupted multipart upload from a
// previously-returned Checkpoint (`resume_upload(checkpoint, source) →
// node`, §6).
func (s *Session) ResumeUpload(ctx context.Context, src upload.SeekableSource, cp upload.Checkpoint) (map[string]any, error) {
	return s.Multipart.Resume(ctx, src, cp)
}
