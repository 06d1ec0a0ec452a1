package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"pepplus/internal/blob/blobtest"
	"pepplus/internal/blob/core"
)

type fakeObject struct {
	body        []byte
	contentType string
	metadata    http.Header
}

// fakeS3 serves the path-style subset of the S3 REST API the store uses.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string]fakeObject)} }

func respond(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func errorBody(code string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><Error><Code>` + code + `</Code><Message>` + code + `</Message></Error>`
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return f.list(req.URL.Query().Get("prefix")), nil
	}
	switch req.Method {
	case http.MethodPut:
		if _, exists := f.objects[key]; exists && req.Header.Get("If-None-Match") == "*" {
			return respond(http.StatusPreconditionFailed, errorBody("PreconditionFailed"), nil), nil
		}
		body, _ := io.ReadAll(req.Body)
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeChunked(body)
		}
		meta := http.Header{}
		for name, values := range req.Header {
			if strings.HasPrefix(strings.ToLower(name), "x-amz-meta-") {
				meta[name] = values
			}
		}
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type"), metadata: meta}
		return respond(http.StatusOK, "", http.Header{"Etag": {`"etag"`}}), nil
	case http.MethodHead, http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			if req.Method == http.MethodHead {
				return respond(http.StatusNotFound, "", nil), nil
			}
			return respond(http.StatusNotFound, errorBody("NoSuchKey"), nil), nil
		}
		header := obj.metadata.Clone()
		header.Set("Content-Length", strconv.Itoa(len(obj.body)))
		header.Set("Content-Type", obj.contentType)
		header.Set("Etag", `"etag"`)
		header.Set("Last-Modified", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		resp := respond(http.StatusOK, "", header)
		if req.Method == http.MethodGet {
			resp.Body = io.NopCloser(bytes.NewReader(obj.body))
			resp.ContentLength = int64(len(obj.body))
		}
		return resp, nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, "", nil), nil
	}
	return respond(http.StatusNotImplemented, errorBody("NotImplemented"), nil), nil
}

func (f *fakeS3) list(prefix string) *http.Response {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2026-03-02T00:00:00Z</LastModified></Contents>",
			k, len(f.objects[k].body))
	}
	b.WriteString(`</ListBucketResult>`)
	return respond(http.StatusOK, b.String(), http.Header{"Content-Type": {"application/xml"}})
}

// decodeChunked strips aws-chunked framing (size;ext CRLF data CRLF ... 0 CRLF trailers).
func decodeChunked(b []byte) []byte {
	var out []byte
	for {
		i := bytes.Index(b, []byte("\r\n"))
		if i < 0 {
			return out
		}
		sizeField, _, _ := strings.Cut(string(b[:i]), ";")
		n, err := strconv.ParseInt(sizeField, 16, 64)
		if err != nil || n == 0 || int64(len(b)) < int64(i+2)+n {
			return out
		}
		b = b[i+2:]
		out = append(out, b[:n]...)
		b = bytes.TrimPrefix(b[n:], []byte("\r\n"))
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), Config{
		Bucket:          "pepplus-test",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: newFakeS3()},
	})
	if err != nil {
		t.Fatalf("new s3 store: %v", err)
	}
	return s
}

func TestStoreContract(t *testing.T) {
	blobtest.Run(t, func(t *testing.T) core.Store { return newTestStore(t) })
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestStoreIdentity(t *testing.T) {
	s := newTestStore(t)
	if s.Driver() != core.DriverS3 || s.Bucket() != "pepplus-test" {
		t.Fatalf("unexpected identity %s %s", s.Driver(), s.Bucket())
	}
}

func TestDecodeChunked(t *testing.T) {
	framed := []byte("5\r\nhello\r\n3;chunk-signature=abc\r\n!!!\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n")
	if got := string(decodeChunked(framed)); got != "hello!!!" {
		t.Fatalf("unexpected decode %q", got)
	}
}
