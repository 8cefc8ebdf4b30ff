package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/chenyanggao-clone/p115client/api"
)

// MultipartDriver drives the OSS multipart upload (C6): init, iterate
// parts (with resume), complete. Parts may upload concurrently; only
// the final completion call is serialized.
type MultipartDriver struct {
	OSS       *api.OSSClient
	STS       *STSCache
	Log       *logrus.Entry
	Concurrency int
}

// NewMultipartDriver builds a driver with a sane default concurrency.
func NewMultipartDriver(oss *api.OSSClient, sts *STSCache) *MultipartDriver {
	return &MultipartDriver{
		OSS:         oss,
		STS:         sts,
		Log:         logrus.WithField("component", "multipart"),
		Concurrency: 4,
	}
}

// Upload drives a fresh (non-resumed) multipart upload of src against
// the bucket/object/callback the upload-init response handed back.
// partSize must be > 0 (the caller already decided to dispatch to
// multipart rather than single-shot).
func (d *MultipartDriver) Upload(ctx context.Context, src SeekableSource, cp Checkpoint) (map[string]any, error) {
	creds, err := d.STS.Get(ctx)
	if err != nil {
		return nil, err
	}

	uploadID, err := d.OSS.InitiateMultipartUpload(ctx, cp.Bucket, cp.Object, creds)
	if err != nil {
		return nil, err
	}
	cp.UploadID = uploadID

	return d.resume(ctx, src, cp, nil)
}

// SinglePut uploads src whole in one OSS PUT instead of the multipart
// dance, for the §4.4 step 3 case where part_size is non-positive (the
// file is small enough, or the caller opted out of chunking).
func (d *MultipartDriver) SinglePut(ctx context.Context, src SeekableSource, cp Checkpoint) (map[string]any, error) {
	size, known := src.Size()
	if !known {
		size = cp.FileSize
	}
	buf := make([]byte, size)
	if _, err := src.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read source for single-shot put: %w", err)
	}

	creds, err := d.STS.Get(ctx)
	if err != nil {
		return nil, err
	}
	return d.OSS.PutObject(ctx, cp.Bucket, cp.Object, buf, cp.Callback, creds)
}

// Resume continues an interrupted multipart upload from the checkpoint:
// it lists already-uploaded parts, accepts a contiguous prefix whose
// size matches part_size, and uploads only what's missing (§4.5, §4.6
// "List parts (resume)").
func (d *MultipartDriver) Resume(ctx context.Context, src SeekableSource, cp Checkpoint) (map[string]any, error) {
	creds, err := d.STS.Get(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := d.OSS.ListParts(ctx, cp.Bucket, cp.Object, cp.UploadID, creds)
	if err != nil {
		return nil, err
	}
	return d.resume(ctx, src, cp, existing)
}

func (d *MultipartDriver) resume(ctx context.Context, src SeekableSource, cp Checkpoint, existing []api.OSSPart) (map[string]any, error) {
	size, known := src.Size()
	if !known {
		size = cp.FileSize
	}
	totalParts := int((size + cp.PartSize - 1) / cp.PartSize)

	done := acceptContiguousPrefix(existing, cp.PartSize)

	parts := make([]api.CompletedPart, len(done))
	for i, p := range done {
		parts[i] = api.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag}
	}

	toUpload := make([]int, 0, totalParts-len(done))
	for n := len(done) + 1; n <= totalParts; n++ {
		toUpload = append(toUpload, n)
	}

	if len(toUpload) > 0 {
		uploaded, err := d.uploadParts(ctx, src, cp, toUpload, size)
		if err != nil {
			return nil, &AbortedError{Checkpoint: cp, Cause: err}
		}
		parts = append(parts, uploaded...)
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	creds, err := d.STS.Get(ctx)
	if err != nil {
		return nil, &AbortedError{Checkpoint: cp, Cause: err}
	}
	return d.OSS.CompleteMultipartUpload(ctx, cp.Bucket, cp.Object, cp.UploadID, parts, cp.Callback, creds)
}

// acceptContiguousPrefix returns the longest prefix, ordered by
// PartNumber starting at 1, of parts whose Size exactly matches
// partSize. The first short or missing part restarts (§4.6).
func acceptContiguousPrefix(existing []api.OSSPart, partSize int64) []api.OSSPart {
	byNumber := make(map[int]api.OSSPart, len(existing))
	for _, p := range existing {
		byNumber[p.PartNumber] = p
	}
	var out []api.OSSPart
	for n := 1; ; n++ {
		p, ok := byNumber[n]
		if !ok || p.Size != partSize {
			break
		}
		out = append(out, p)
	}
	return out
}

func (d *MultipartDriver) uploadParts(ctx context.Context, src SeekableSource, cp Checkpoint, partNumbers []int, size int64) ([]api.CompletedPart, error) {
	concurrency := d.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]api.CompletedPart, len(partNumbers))
	errs := make([]error, len(partNumbers))

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, partNumber := range partNumbers {
		i, partNumber := i, partNumber
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			off := int64(partNumber-1) * cp.PartSize
			length := cp.PartSize
			if off+length > size {
				length = size - off
			}
			buf := make([]byte, length)
			if _, err := src.ReadAt(buf, off); err != nil && !errors.Is(err, io.EOF) {
				errs[i] = fmt.Errorf("read part %d: %w", partNumber, err)
				return
			}

			creds, err := d.STS.Get(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			etag, err := d.OSS.UploadPart(ctx, cp.Bucket, cp.Object, cp.UploadID, partNumber, buf, creds)
			if err != nil {
				errs[i] = fmt.Errorf("upload part %d: %w", partNumber, err)
				return
			}
			results[i] = api.CompletedPart{PartNumber: partNumber, ETag: etag}
			d.Log.WithFields(logrus.Fields{"part": partNumber, "bytes": length}).Debug("part uploaded")
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
