// Package globus implements the Globus bulk-transfer Connector: files live
// on one local filesystem and are kept in sync with one or more remote
// filesystems by submitting asynchronous bulk-transfer tasks. The actual
// Globus Transfer API client is out of scope per spec.md §1 ("the
// Globus-transfer... client libraries themselves are assumed"); this
// package is built against the narrow TransferClient adapter interface
// below, with no concrete network implementation shipped.
package globus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/proxystore-go/proxystore/pkg/connector"
)

// Kind is this Connector's registered fully-qualified type identifier.
const Kind = "globus"

// Key is a Globus Connector's key shape: a filename plus the outbound
// transfer task ids that Exists must wait on before the remote copy is
// guaranteed present.
type Key struct {
	Filename string
	TaskIDs  []string
}

func (k Key) String() string { return fmt.Sprintf("globus(%s, tasks=%v)", k.Filename, k.TaskIDs) }

// EndpointSpec names one Globus collection/endpoint participating in sync.
type EndpointSpec struct {
	EndpointID string
	Path       string
}

// TransferClient is the narrow adapter surface this Connector requires.
// Implementations submit bulk-transfer tasks and report their status; the
// wire protocol against the real Globus Transfer service is assumed and not
// specified here.
type TransferClient interface {
	// SubmitTransfer copies relPath from the source endpoint to the
	// destination endpoint and returns a task id.
	SubmitTransfer(ctx context.Context, srcEndpointID, dstEndpointID, relPath string) (taskID string, err error)
	// TaskStatus reports whether a previously submitted task has
	// completed successfully ("SUCCEEDED"), is still in flight
	// ("ACTIVE"), or failed ("FAILED").
	TaskStatus(ctx context.Context, taskID string) (status string, err error)
}

// Connector is the Globus bulk-transfer Connector. It requires at least two
// configured endpoints: LocalEndpoint is where Put/Get operate directly on
// the filesystem; RemoteEndpoints are kept in sync via Client.
type Connector struct {
	Client          TransferClient
	LocalEndpoint   EndpointSpec
	RemoteEndpoints []EndpointSpec
	Timeout         time.Duration
	PollingInterval time.Duration
}

// New creates a Globus Connector. At least one remote endpoint is required.
func New(client TransferClient, local EndpointSpec, remotes []EndpointSpec, timeout, pollingInterval time.Duration) (*Connector, error) {
	if len(remotes) < 1 {
		return nil, &connector.ConfigurationError{Message: "globus connector requires at least one remote endpoint"}
	}
	if pollingInterval <= 0 {
		pollingInterval = time.Second
	}
	return &Connector{
		Client:          client,
		LocalEndpoint:   local,
		RemoteEndpoints: remotes,
		Timeout:         timeout,
		PollingInterval: pollingInterval,
	}, nil
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Config() connector.Config {
	remotes := make([]map[string]any, len(c.RemoteEndpoints))
	for i, r := range c.RemoteEndpoints {
		remotes[i] = map[string]any{"endpoint_id": r.EndpointID, "path": r.Path}
	}
	return connector.Config{Kind: Kind, Data: map[string]any{
		"local_endpoint_id": c.LocalEndpoint.EndpointID,
		"local_path":        c.LocalEndpoint.Path,
		"remote_endpoints":  remotes,
		"timeout_seconds":   c.Timeout.Seconds(),
		"polling_interval_seconds": c.PollingInterval.Seconds(),
	}}
}

func (c *Connector) localPath(name string) string {
	return filepath.Join(c.LocalEndpoint.Path, name)
}

// Put writes the object to the local endpoint's filesystem and submits one
// outbound bulk-transfer task per remote endpoint, recording their task ids
// in the returned Key so Exists can wait on them.
func (c *Connector) Put(ctx context.Context, data []byte) (connector.Key, error) {
	name := uuid.NewString()
	if err := os.WriteFile(c.localPath(name), data, 0o644); err != nil {
		return nil, fmt.Errorf("globus: writing local file %s: %w", name, err)
	}
	taskIDs := make([]string, 0, len(c.RemoteEndpoints))
	for _, remote := range c.RemoteEndpoints {
		taskID, err := c.Client.SubmitTransfer(ctx, c.LocalEndpoint.EndpointID, remote.EndpointID, name)
		if err != nil {
			return nil, fmt.Errorf("globus: submitting transfer to %s: %w", remote.EndpointID, err)
		}
		taskIDs = append(taskIDs, taskID)
	}
	return Key{Filename: name, TaskIDs: taskIDs}, nil
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
	gk, ok := key.(Key)
	if !ok {
		return nil, false, fmt.Errorf("globus: wrong key type %T", key)
	}
	data, err := os.ReadFile(c.localPath(gk.Filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("globus: reading %s: %w", gk.Filename, err)
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

// Exists waits, up to Timeout, for every outbound transfer task recorded in
// key to reach "SUCCEEDED" before reporting presence.
func (c *Connector) Exists(ctx context.Context, key connector.Key) (bool, error) {
	gk, ok := key.(Key)
	if !ok {
		return false, fmt.Errorf("globus: wrong key type %T", key)
	}
	if _, err := os.Stat(c.localPath(gk.Filename)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("globus: stat %s: %w", gk.Filename, err)
	}

	deadline := time.Time{}
	if c.Timeout > 0 {
		deadline = time.Now().Add(c.Timeout)
	}
	pending := append([]string(nil), gk.TaskIDs...)
	ticker := time.NewTicker(c.PollingInterval)
	defer ticker.Stop()
	for len(pending) > 0 {
		remaining := pending[:0]
		for _, taskID := range pending {
			status, err := c.Client.TaskStatus(ctx, taskID)
			if err != nil {
				return false, fmt.Errorf("globus: checking task %s: %w", taskID, err)
			}
			switch status {
			case "SUCCEEDED":
				// done with this task
			case "FAILED":
				return false, fmt.Errorf("globus: task %s failed", taskID)
			default:
				remaining = append(remaining, taskID)
			}
		}
		pending = remaining
		if len(pending) == 0 {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return false, &connector.TimeoutError{Message: fmt.Sprintf("waiting on transfer tasks %v", pending)}
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
	return true, nil
}

func (c *Connector) Evict(_ context.Context, key connector.Key) error {
	gk, ok := key.(Key)
	if !ok {
		return fmt.Errorf("globus: wrong key type %T", key)
	}
	err := os.Remove(c.localPath(gk.Filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("globus: evicting %s: %w", gk.Filename, err)
	}
	return nil
}

func (c *Connector) Close() error { return nil }
