package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/chenyanggao-clone/p115client/ossauth"
	"github.com/chenyanggao-clone/p115client/p115err"
)

// OSSClient drives the OSS-compatible object-storage backend (C6):
// init/list-parts/upload-part/complete/abort, each signed per §4.2.
type OSSClient struct {
	Transport   *Transport
	EndpointURL func(bucket, object string) string // <scheme>://<bucket>.<host>/<object>
}

// NewOSSClient builds an OSSClient against the given endpoint host. The
// host is supplied by the caller (NewSession passes its configured
// value); it is not fetched from the Service here.
func NewOSSClient(t *Transport, scheme, endpointHost string) *OSSClient {
	return &OSSClient{
		Transport: t,
		EndpointURL: func(bucket, object string) string {
			return fmt.Sprintf("%s://%s.%s/%s", scheme, bucket, endpointHost, object)
		},
	}
}

func (o *OSSClient) sign(method, bucket, object string, params url.Values, headers map[string]string, creds STSCredentials) map[string]string {
	const rfc1123GMT = "Mon, 02 Jan 2006 15:04:05 GMT"
	date := time.Now().UTC().Format(rfc1123GMT)
	allHeaders := map[string]string{"x-oss-security-token": creds.SecurityToken}
	for k, v := range headers {
		allHeaders[k] = v
	}
	sig := ossauth.AuthorizationHeader(creds.AccessKeyID, creds.AccessKeySecret, ossauth.Request{
		Method:     method,
		Bucket:     bucket,
		Object:     object,
		Date:       date,
		OSSHeaders: allHeaders,
		Params:     params,
	})
	out := map[string]string{
		"Authorization":        sig,
		"Date":                 date,
		"x-oss-security-token": creds.SecurityToken,
	}
	for k, v := range headers {
		out[k] = v
	}
	return out
}

// InitiateMultipartUpload performs POST ?uploads and returns the new
// upload id (§4.6 "Init").
func (o *OSSClient) InitiateMultipartUpload(ctx context.Context, bucket, object string, creds STSCredentials) (string, error) {
	params := url.Values{"uploads": {""}}
	headers := o.sign("POST", bucket, object, params, nil, creds)
	resp, err := o.Transport.Call(ctx, Request{
		Method:  "POST",
		URL:     o.EndpointURL(bucket, object),
		Query:   params,
		Headers: headers,
		Parse:   ParseXML,
	})
	if err != nil {
		return "", err
	}
	var parsed ossInitiateResponse
	if err := DecodeXML(resp.XML, &parsed); err != nil {
		return "", p115err.New(p115err.KindRemoteError, "invalid InitiateMultipartUpload XML: "+err.Error())
	}
	return parsed.UploadID, nil
}

// ListParts paginates the already-uploaded parts of an in-progress
// upload (§4.6 "List parts (resume)").
func (o *OSSClient) ListParts(ctx context.Context, bucket, object, uploadID string, creds STSCredentials) ([]OSSPart, error) {
	var all []OSSPart
	marker := 0
	for {
		params := url.Values{"uploadId": {uploadID}}
		if marker > 0 {
			params.Set("part-number-marker", strconv.Itoa(marker))
		}
		headers := o.sign("GET", bucket, object, params, nil, creds)
		resp, err := o.Transport.Call(ctx, Request{
			Method:     "GET",
			URL:        o.EndpointURL(bucket, object),
			Query:      params,
			Headers:    headers,
			Parse:      ParseXML,
			Idempotent: true,
		})
		if err != nil {
			return nil, err
		}
		var parsed ossListPartsResponse
		if err := DecodeXML(resp.XML, &parsed); err != nil {
			return nil, p115err.New(p115err.KindRemoteError, "invalid ListParts XML: "+err.Error())
		}
		all = append(all, parsed.Part...)
		if !parsed.IsTruncated {
			break
		}
		marker = parsed.NextPartNumberMarker
	}
	return all, nil
}

// UploadPart PUTs the k-th chunk of the source and returns its ETag
// (§4.6 "Upload part").
func (o *OSSClient) UploadPart(ctx context.Context, bucket, object, uploadID string, partNumber int, data []byte, creds STSCredentials) (etag string, err error) {
	params := url.Values{
		"partNumber": {strconv.Itoa(partNumber)},
		"uploadId":   {uploadID},
	}
	headers := o.sign("PUT", bucket, object, params, nil, creds)
	resp, err := o.Transport.Call(ctx, Request{
		Method:  "PUT",
		URL:     o.EndpointURL(bucket, object),
		Query:   params,
		RawBody: data,
		Headers: headers,
		Parse:   ParseNone,
	})
	if err != nil {
		return "", err
	}
	return resp.Header.Get("ETag"), nil
}

// PutObject uploads data in a single PUT, echoing the callback blob in
// the two x-oss-callback* headers exactly as CompleteMultipartUpload
// does (§4.4 step 3 "single-shot PUT"). Used when the caller decided a
// multipart dance isn't worth it for this object.
func (o *OSSClient) PutObject(ctx context.Context, bucket, object string, data []byte, callback CallbackBlob, creds STSCredentials) (map[string]any, error) {
	params := url.Values{}
	extra := map[string]string{
		"x-oss-callback":     base64.StdEncoding.EncodeToString([]byte(callback.Callback)),
		"x-oss-callback-var": base64.StdEncoding.EncodeToString([]byte(callback.CallbackVar)),
	}
	headers := o.sign("PUT", bucket, object, params, extra, creds)

	resp, err := o.Transport.Call(ctx, Request{
		Method:  "PUT",
		URL:     o.EndpointURL(bucket, object),
		Query:   params,
		RawBody: data,
		Headers: headers,
		Parse:   ParseJSON,
	})
	if err != nil {
		return nil, err
	}
	return resp.JSON, nil
}

// CompleteMultipartUpload finalizes the upload, echoing the callback
// blob in the two x-oss-callback* headers and ordering parts ascending
// by PartNumber (§4.6 "Complete").
func (o *OSSClient) CompleteMultipartUpload(ctx context.Context, bucket, object, uploadID string, parts []CompletedPart, callback CallbackBlob, creds STSCredentials) (map[string]any, error) {
	sorted := append([]CompletedPart{}, parts...)
	sortCompletedParts(sorted)

	body, err := xmlMarshalCompleteRequest(sorted)
	if err != nil {
		return nil, err
	}

	params := url.Values{"uploadId": {uploadID}}
	extra := map[string]string{
		"x-oss-callback":     base64.StdEncoding.EncodeToString([]byte(callback.Callback)),
		"x-oss-callback-var": base64.StdEncoding.EncodeToString([]byte(callback.CallbackVar)),
	}
	headers := o.sign("POST", bucket, object, params, extra, creds)

	resp, err := o.Transport.Call(ctx, Request{
		Method:  "POST",
		URL:     o.EndpointURL(bucket, object),
		Query:   params,
		RawBody: body,
		Headers: headers,
		Parse:   ParseJSON,
	})
	if err != nil {
		return nil, err
	}
	return resp.JSON, nil
}

// AbortMultipartUpload cancels an in-progress upload (§4.6 "Abort").
// 404 is treated as already-gone, not an error.
func (o *OSSClient) AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string, creds STSCredentials) error {
	params := url.Values{"uploadId": {uploadID}}
	headers := o.sign("DELETE", bucket, object, params, nil, creds)
	resp, err := o.Transport.Call(ctx, Request{
		Method:  "DELETE",
		URL:     o.EndpointURL(bucket, object),
		Query:   params,
		Headers: headers,
		Parse:   ParseNone,
	})
	if err != nil {
		if e, ok := err.(*p115err.Error); ok && e.HTTPStatus == 404 {
			return nil
		}
		return err
	}
	if resp.StatusCode == 404 {
		return nil
	}
	return nil
}

func sortCompletedParts(parts []CompletedPart) {
	for i := 1; i < len(parts); i++ {
		for j := i; j > 0 && parts[j-1].PartNumber > parts[j].PartNumber; j-- {
			parts[j-1], parts[j] = parts[j], parts[j-1]
		}
	}
}

func xmlMarshalCompleteRequest(parts []CompletedPart) ([]byte, error) {
	req := completeMultipartUploadRequest{Part: parts}
	var b []byte
	b = append(b, []byte(`<?xml version="1.0" encoding="UTF-8"?>`)...)
	b = append(b, []byte("<CompleteMultipartUpload>")...)
	for _, p := range req.Part {
		b = append(b, []byte(fmt.Sprintf("<Part><PartNumber>%d</PartNumber><ETag>%s</ETag></Part>", p.PartNumber, p.ETag))...)
	}
	b = append(b, []byte("</CompleteMultipartUpload>")...)
	return b, nil
}
