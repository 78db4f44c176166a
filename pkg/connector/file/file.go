// Package file implements a filesystem-backed Connector: keys are
// filenames under a configured root directory, put writes atomically
// (temp file + rename), and close may optionally remove the root
// directory, per spec §4.2.
package file

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/proxystore-go/proxystore/pkg/connector"
)

// Kind is this Connector's registered fully-qualified type identifier.
const Kind = "file"

// Key is a File Connector's key shape: a single filename, relative to the
// Connector's root directory.
type Key struct {
	Filename string
}

func (k Key) String() string { return fmt.Sprintf("file(%s)", k.Filename) }

// Connector persists objects as files under Root.
type Connector struct {
	Root        string
	ClearOnClose bool
	counter      uint64
}

// New creates a File Connector rooted at dir. The directory is created if
// it does not already exist. If clearOnClose is set, Close removes Root and
// everything under it.
func New(dir string, clearOnClose bool) (*Connector, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file: creating root %s: %w", dir, err)
	}
	return &Connector{Root: dir, ClearOnClose: clearOnClose}, nil
}

func init() {
	connector.Register(Kind, func(cfg connector.Config) (connector.Connector, error) {
		dir, _ := cfg.Data["root"].(string)
		if dir == "" {
			return nil, &connector.ConfigurationError{Message: "file connector config missing root"}
		}
		clear, _ := cfg.Data["clear_on_close"].(bool)
		return New(dir, clear)
	})
	gob.Register(Key{})
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Config() connector.Config {
	return connector.Config{Kind: Kind, Data: map[string]any{
		"root":           c.Root,
		"clear_on_close": c.ClearOnClose,
	}}
}

func (c *Connector) newFilename() string {
	atomic.AddUint64(&c.counter, 1)
	return uuid.NewString()
}

func (c *Connector) pathFor(name string) string {
	return filepath.Join(c.Root, name)
}

func (c *Connector) Put(_ context.Context, data []byte) (connector.Key, error) {
	name := c.newFilename()
	finalPath := c.pathFor(name)
	tmp, err := os.CreateTemp(c.Root, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("file: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("file: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("file: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("file: renaming into place: %w", err)
	}
	return Key{Filename: name}, nil
}

func (c *Connector) PutBatch(ctx context.Context, datas [][]byte) ([]connector.Key, error) {
	keys := make([]connector.Key, len(datas))
	for i, d := range datas {
		k, err := c.Put(ctx, d)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

func (c *Connector) Get(_ context.Context, key connector.Key) ([]byte, bool, error) {
	fk, ok := key.(Key)
	if !ok {
		return nil, false, fmt.Errorf("file: wrong key type %T", key)
	}
	data, err := os.ReadFile(c.pathFor(fk.Filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("file: reading %s: %w", fk.Filename, err)
	}
	return data, true, nil
}

func (c *Connector) GetBatch(ctx context.Context, keys []connector.Key) ([][]byte, []bool, error) {
	datas := make([][]byte, len(keys))
	oks := make([]bool, len(keys))
	for i, k := range keys {
		d, ok, err := c.Get(ctx, k)
		if err != nil {
			return nil, nil, err
		}
		datas[i], oks[i] = d, ok
	}
	return datas, oks, nil
}

func (c *Connector) Exists(_ context.Context, key connector.Key) (bool, error) {
	fk, ok := key.(Key)
	if !ok {
		return false, fmt.Errorf("file: wrong key type %T", key)
	}
	_, err := os.Stat(c.pathFor(fk.Filename))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("file: stat %s: %w", fk.Filename, err)
	}
	return true, nil
}

func (c *Connector) Evict(_ context.Context, key connector.Key) error {
	fk, ok := key.(Key)
	if !ok {
		return fmt.Errorf("file: wrong key type %T", key)
	}
	err := os.Remove(c.pathFor(fk.Filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("file: evicting %s: %w", fk.Filename, err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.ClearOnClose {
		if err := os.RemoveAll(c.Root); err != nil {
			return fmt.Errorf("file: clearing root on close: %w", err)
		}
	}
	return nil
}

func (c *Connector) NewKey(_ context.Context) (connector.Key, error) {
	return Key{Filename: c.newFilename()}, nil
}

func (c *Connector) Set(_ context.Context, key connector.Key, data []byte) error {
	fk, ok := key.(Key)
	if !ok {
		return fmt.Errorf("file: wrong key type %T", key)
	}
	return os.WriteFile(c.pathFor(fk.Filename), data, 0o644)
}

var _ connector.Deferrable = (*Connector)(nil)
