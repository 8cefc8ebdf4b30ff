// Package upload implements the upload engine (C5): size/hash
// discovery, the instant-upload and hash-challenge negotiation, dispatch
// to a single-shot PUT or the OSS multipart driver (C6), and the sample
// (direct) upload fallback (§4.7).
package upload

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"strings"
)

// Source abstracts the five input shapes §4.4 step 1 enumerates,
// reduced to the two adapter interfaces §9's design notes call for: a
// seekable byte source with known size, and a lazy, possibly
// unknown-size chunk sequence. The upload engine branches on which is
// supplied.
type Source interface {
	// Size returns the source's length and whether it is known without
	// reading the whole thing.
	Size() (size int64, known bool)
}

// SeekableSource is a Source that can be read at an arbitrary offset,
// letting the engine answer a hash-challenge (§4.4 step 2) without
// buffering the whole file.
type SeekableSource interface {
	Source
	io.ReaderAt
}

// ChunkSource is a Source that only yields bytes forward, once, as a
// finite lazy sequence — e.g. a non-seekable network stream. The engine
// can still hash it eagerly by reading to EOF, but cannot answer a
// hash-challenge over an arbitrary range without buffering.
type ChunkSource interface {
	Source
	Next(ctx context.Context) (chunk []byte, err error) // io.EOF when exhausted
}

// BufferSource is an in-memory buffer: the simplest, always-seekable,
// always-known-size case (§4.4 step 1 "source is a buffer").
type BufferSource struct {
	Data []byte
}

func (b *BufferSource) Size() (int64, bool) { return int64(len(b.Data)), true }

func (b *BufferSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b.Data)) {
		return 0, io.EOF
	}
	n := copy(p, b.Data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// SHA1 computes the whole-buffer SHA-1, uppercase hex.
func (b *BufferSource) SHA1() string {
	return sha1Hex(b.Data)
}

// URLSource proxies an http(s) URL as a non-seekable chunk source,
// matching the "source is an HTTP(S) URL to be proxied" case of §4.4
// step 1 (supplemented from original_source/'s client.py, which accepts
// a URL and streams it through).
type URLSource struct {
	body      io.ReadCloser
	size      int64
	sizeKnown bool
	chunkSize int
}

// NewURLSource wraps an already-opened response body with its
// Content-Length, if any.
func NewURLSource(body io.ReadCloser, contentLength int64) *URLSource {
	return &URLSource{
		body:      body,
		size:      contentLength,
		sizeKnown: contentLength > 0,
		chunkSize: 1 << 20,
	}
}

func (u *URLSource) Size() (int64, bool) { return u.size, u.sizeKnown }

func (u *URLSource) Next(ctx context.Context) ([]byte, error) {
	buf := make([]byte, u.chunkSize)
	n, err := io.ReadFull(u.body, buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == io.ErrUnexpectedEOF {
		return nil, io.EOF
	}
	return nil, err
}

// Close releases the underlying HTTP response body.
func (u *URLSource) Close() error { return u.body.Close() }

// RangeSHA1 computes the uppercase-hex SHA-1 of the inclusive byte range
// [start, end] of a SeekableSource, as required to answer a hash
// challenge (§4.4 step 2, §4.1's "Hash challenge" glossary entry).
func RangeSHA1(src SeekableSource, start, end int64) (string, error) {
	h := sha1.New()
	buf := make([]byte, 64*1024)
	remaining := end - start + 1
	off := start
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		read, err := src.ReadAt(buf[:n], off)
		if read > 0 {
			h.Write(buf[:read])
		}
		remaining -= int64(read)
		off += int64(read)
		if err != nil {
			if err == io.EOF && remaining == 0 {
				break
			}
			return "", err
		}
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

func sha1Hex(data []byte) string {
	h := sha1.Sum(data)
	return strings.ToUpper(hex.EncodeToString(h[:]))
}

// DrainToBuffer reads a ChunkSource fully into memory, used for the
// "non-seekable and size < 1 MiB" branch of §4.4 step 1, which switches
// to the buffer case once read.
func DrainToBuffer(ctx context.Context, src ChunkSource) (*BufferSource, error) {
	var data []byte
	for {
		chunk, err := src.Next(ctx)
		if len(chunk) > 0 {
			data = append(data, chunk...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return &BufferSource{Data: data}, nil
}
