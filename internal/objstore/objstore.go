// 包 objstore：对象存储访问；图层数据以 blob 形式存放于 GCS bucket
package objstore

import (
	"context"
	"io"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
)

// ErrNotFound：对象不存在
var ErrNotFound = errors.New("object not found")

// BlobReader：按 bucket/name 读取对象全部内容
type BlobReader interface {
	ReadBlob(ctx context.Context, bucket, name string) ([]byte, error)
}

// BlobWriter：整对象覆盖写入
type BlobWriter interface {
	WriteBlob(ctx context.Context, bucket, name string, data []byte, contentType string) error
}

// GCS：基于 cloud.google.com/go/storage 的实现，凭证来自 ADC
type GCS struct {
	c *storage.Client
}

func NewGCS(ctx context.Context) (*GCS, error) {
	c, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "storage client")
	}
	return &GCS{c: c}, nil
}

func (g *GCS) ReadBlob(ctx context.Context, bucket, name string) ([]byte, error) {
	r, err := g.c.Bucket(bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, errors.Wrapf(ErrNotFound, "gs://%s/%s", bucket, name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open gs://%s/%s", bucket, name)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read gs://%s/%s", bucket, name)
	}
	return b, nil
}

func (g *GCS) WriteBlob(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	w := g.c.Bucket(bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "write gs://%s/%s", bucket, name)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "finalize gs://%s/%s", bucket, name)
	}
	return nil
}

func (g *GCS) Close() error { return g.c.Close() }

// Mem：进程内对象存储，用于测试与无 GCP 环境的演练
type Mem struct {
	mu   sync.RWMutex
	objs map[string][]byte
}

func NewMem() *Mem { return &Mem{objs: make(map[string][]byte)} }

func (m *Mem) ReadBlob(ctx context.Context, bucket, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objs[bucket+"/"+name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "mem://%s/%s", bucket, name)
	}
	return append([]byte(nil), b...), nil
}

func (m *Mem) WriteBlob(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[bucket+"/"+name] = append([]byte(nil), data...)
	return nil
}
