// Package ossauth implements the Aliyun-OSS v1 request-signing scheme
// (HMAC-SHA1 over a canonical string) that the Service's OSS-compatible
// object-storage tier requires for every part PUT, init, list, complete
// and abort call.
package ossauth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// subresourceKeys is the closed set of query parameters that participate
// in CanonicalizedResource. Anything outside this set is excluded from
// the string to sign even if present on the request.
var subresourceKeys = map[string]struct{}{}

func init() {
	for _, k := range []string{
		"response-content-type", "response-content-language", "response-cache-control",
		"logging", "response-content-encoding", "acl", "uploadId", "uploads", "partNumber",
		"group", "link", "delete", "website", "location", "objectInfo", "objectMeta",
		"response-expires", "response-content-disposition", "cors", "lifecycle", "restore",
		"qos", "referer", "stat", "bucketInfo", "append", "position", "security-token",
		"live", "comp", "status", "vod", "startTime", "endTime", "x-oss-process", "symlink",
		"callback", "callback-var", "tagging", "encryption", "versions", "versioning",
		"versionId", "policy", "requestPayment", "x-oss-traffic-limit", "qosInfo",
		"asyncFetch", "x-oss-request-payer", "sequential", "inventory", "inventoryId",
		"continuation-token", "worm", "wormId", "wormExtend", "replication",
		"replicationLocation", "replicationProgress", "transferAcceleration", "cname",
		"metaQuery", "x-oss-ac-source-ip", "x-oss-ac-subnet-mask", "x-oss-ac-vpc-id",
		"x-oss-ac-forward-allow", "resourceGroup", "style", "styleName",
		"x-oss-async-process", "regionList",
	} {
		subresourceKeys[k] = struct{}{}
	}
}

// Request carries the inputs needed to build the canonical string for
// one OSS call.
type Request struct {
	Method        string
	Bucket        string
	Object        string
	ContentMD5    string
	ContentType   string
	Date          string // RFC1123 GMT, e.g. "Tue, 27 Mar 2007 21:15:45 GMT"
	OSSHeaders    map[string]string // x-oss-* headers, any case
	Params        url.Values
}

// CanonicalString builds the string-to-sign per §4.2.
func CanonicalString(r Request) string {
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte('\n')
	b.WriteString(r.ContentMD5)
	b.WriteByte('\n')
	b.WriteString(r.ContentType)
	b.WriteByte('\n')
	b.WriteString(r.Date)
	b.WriteByte('\n')
	b.WriteString(canonicalizedOSSHeaders(r.OSSHeaders))
	b.WriteString("/")
	b.WriteString(r.Bucket)
	b.WriteString("/")
	b.WriteString(r.Object)
	b.WriteString(canonicalizedResource(r.Params))
	return b.String()
}

func canonicalizedOSSHeaders(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}
	keys := make([]string, 0, len(headers))
	lower := make(map[string]string, len(headers))
	for k, v := range headers {
		lk := strings.ToLower(k)
		if !strings.HasPrefix(lk, "x-oss-") {
			continue
		}
		lower[lk] = v
		keys = append(keys, lk)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(lower[k])
		b.WriteByte('\n')
	}
	return b.String()
}

func canonicalizedResource(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		if _, ok := subresourceKeys[k]; ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	filtered := url.Values{}
	for _, k := range keys {
		filtered[k] = params[k]
	}
	return "?" + filtered.Encode()
}

// Sign returns the base64 HMAC-SHA1 signature of the canonical string
// under accessKeySecret.
func Sign(accessKeySecret string, r Request) string {
	mac := hmac.New(sha1.New, []byte(accessKeySecret))
	mac.Write([]byte(CanonicalString(r)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// AuthorizationHeader builds the "OSS <AccessKeyId>:<Signature>" header
// value.
func AuthorizationHeader(accessKeyID, accessKeySecret string, r Request) string {
	return "OSS " + accessKeyID + ":" + Sign(accessKeySecret, r)
}
