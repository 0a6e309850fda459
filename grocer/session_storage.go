package grocer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"gopkg.in/yaml.v3"
)


// keys of the persisted session
const (
	SessionKeyUserId = "user_id"
	SessionKeyToken = "token"
)


// durable key-value storage for the session identity and token
type SessionStorage interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
	Remove(key string) error
}


// in-memory session storage, the equivalent of a browser tab's session storage
// when an idle ttl is set, a key that is not read or written within the ttl is dropped
type MemorySessionStorage struct {
	cache *ttlcache.Cache[string, string]
}

func NewMemorySessionStorage(ctx context.Context) *MemorySessionStorage {
	return NewMemorySessionStorageWithTtl(ctx, ttlcache.NoTTL)
}

func NewMemorySessionStorageWithTtl(ctx context.Context, idleTtl time.Duration) *MemorySessionStorage {
	cache := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](idleTtl),
	)

	go cache.Start()

	go func() {
		<-ctx.Done()
		cache.Stop()
	}()

	return &MemorySessionStorage{
		cache: cache,
	}
}

func (self *MemorySessionStorage) Get(key string) (string, bool) {
	item := self.cache.Get(key)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

func (self *MemorySessionStorage) Set(key string, value string) error {
	self.cache.Set(key, value, ttlcache.DefaultTTL)
	return nil
}

func (self *MemorySessionStorage) Remove(key string) error {
	self.cache.Delete(key)
	return nil
}


// session storage persisted as a yaml file
// every write replaces the file so a crash never leaves a partial session
type FileSessionStorage struct {
	path string

	stateLock sync.Mutex
	values map[string]string
}

func NewFileSessionStorage(path string) (*FileSessionStorage, error) {
	values := map[string]string{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read session %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parse session %s: %w", path, err)
		}
		if values == nil {
			values = map[string]string{}
		}
	}
	return &FileSessionStorage{
		path: path,
		values: values,
	}, nil
}

func (self *FileSessionStorage) Get(key string) (string, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	value, ok := self.values[key]
	return value, ok
}

func (self *FileSessionStorage) Set(key string, value string) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	self.values[key] = value
	return self.write()
}

func (self *FileSessionStorage) Remove(key string) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if _, ok := self.values[key]; !ok {
		return nil
	}
	delete(self.values, key)
	return self.write()
}

// must be called with the state lock held
func (self *FileSessionStorage) write() error {
	data, err := yaml.Marshal(self.values)
	if err != nil {
		return err
	}
	dir := filepath.Dir(self.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create session dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, self.path)
}
