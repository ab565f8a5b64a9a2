// Package inmemory provides a map-backed storage driver. Intended solely
// for testing and example purposes.
package inmemory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anchorage/registry/storagedriver"
	"github.com/anchorage/registry/storagedriver/factory"
)

const driverName = "inmemory"

func init() {
	factory.Register(driverName, &inMemoryDriverFactory{})
}

type inMemoryDriverFactory struct{}

func (f *inMemoryDriverFactory) Create(parameters map[string]interface{}) (storagedriver.StorageDriver, error) {
	return New(), nil
}

type object struct {
	data        []byte
	contentType string
	modTime     time.Time
}

// Driver is a storagedriver.StorageDriver backed by a flat map of keys.
type Driver struct {
	mutex   sync.RWMutex
	objects map[string]object
}

var _ storagedriver.StorageDriver = &Driver{}

// New constructs an empty Driver.
func New() *Driver {
	return &Driver{objects: make(map[string]object)}
}

func (d *Driver) Name() string {
	return driverName
}

func (d *Driver) GetContent(ctx context.Context, path string) ([]byte, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	obj, ok := d.objects[path]
	if !ok {
		return nil, storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
	}

	p := make([]byte, len(obj.data))
	copy(p, obj.data)
	return p, nil
}

func (d *Driver) PutContent(ctx context.Context, path string, content []byte, contentType string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	p := make([]byte, len(content))
	copy(p, content)
	d.objects[path] = object{data: p, contentType: contentType, modTime: time.Now()}
	return nil
}

func (d *Driver) Reader(ctx context.Context, path string) (io.ReadCloser, error) {
	p, err := d.GetContent(ctx, path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(p)), nil
}

func (d *Driver) ReadRange(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error) {
	p, err := d.GetContent(ctx, path)
	if err != nil {
		return nil, err
	}

	if offset < 0 || offset > int64(len(p)) {
		return nil, storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
	}

	end := offset + length
	if length < 0 || end > int64(len(p)) {
		end = int64(len(p))
	}

	return io.NopCloser(bytes.NewReader(p[offset:end])), nil
}

func (d *Driver) PutReader(ctx context.Context, path string, content io.Reader, size int64, contentType string) error {
	p, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	return d.PutContent(ctx, path, p, contentType)
}

func (d *Driver) Stat(ctx context.Context, path string) (storagedriver.FileInfo, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	obj, ok := d.objects[path]
	if !ok {
		return storagedriver.FileInfo{}, storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
	}

	return storagedriver.FileInfo{
		Path:        path,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		ModTime:     obj.modTime,
	}, nil
}

func (d *Driver) Exists(ctx context.Context, path string) (bool, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	_, ok := d.objects[path]
	return ok, nil
}

func (d *Driver) List(ctx context.Context, prefix string) ([]string, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var keys []string
	for key := range d.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

func (d *Driver) ListPage(ctx context.Context, prefix string, n int, last string) ([]string, bool, error) {
	all, err := d.List(ctx, prefix)
	if err != nil {
		return nil, false, err
	}

	start := sort.SearchStrings(all, last)
	for start < len(all) && all[start] <= last {
		start++
	}
	all = all[start:]

	if n >= 0 && len(all) > n {
		return all[:n], true, nil
	}
	return all, false, nil
}

func (d *Driver) Delete(ctx context.Context, path string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.objects[path]; !ok {
		return storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
	}

	delete(d.objects, path)
	return nil
}
