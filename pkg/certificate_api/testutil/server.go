package testutil

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewTestServer starts an httptest.Server, or skips the test if binding a port is not permitted.
func NewTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skip: cannot listen in sandbox: %v", err)
	}

	srv := &httptest.Server{
		Listener: l,
		Config:   &http.Server{Handler: handler},
	}
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

// Object is one upload captured by MemoryS3.
type Object struct {
	Body        []byte
	ContentType string
	ACL         string
}

// MemoryS3 is an in-process stand-in for the S3 PutObject call.
type MemoryS3 struct {
	mu      sync.Mutex
	objects map[string]Object
	Puts    int
}

func NewMemoryS3() *MemoryS3 {
	return &MemoryS3{objects: map[string]Object{}}
}

func (m *MemoryS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Puts++
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = Object{
		Body:        body,
		ContentType: aws.ToString(in.ContentType),
		ACL:         string(in.ACL),
	}
	return &s3.PutObjectOutput{}, nil
}

// Object returns the stored object for bucket/key.
func (m *MemoryS3) Object(bucket, key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[bucket+"/"+key]
	return o, ok
}

func (m *MemoryS3) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
