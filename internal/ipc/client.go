package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ping checks whether the daemon answers on the socket.
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.client.Call("Courier.Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Courier.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Courier.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns pending requests optionally filtered by class.
func (c *Client) QueueList(classes []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	req := QueueListRequest{Classes: classes}
	if err := c.client.Call("Courier.QueueList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDepth returns pending request counts per class.
func (c *Client) QueueDepth() (*QueueDepthResponse, error) {
	var resp QueueDepthResponse
	if err := c.client.Call("Courier.QueueDepth", QueueDepthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes pending requests, optionally scoped to one class.
func (c *Client) QueueClear(class string) (*QueueClearResponse, error) {
	var resp QueueClearResponse
	req := QueueClearRequest{Class: class}
	if err := c.client.Call("Courier.QueueClear", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRemove removes a single pending request by ID.
func (c *Client) QueueRemove(id int64) (*QueueRemoveResponse, error) {
	var resp QueueRemoveResponse
	req := QueueRemoveRequest{ID: id}
	if err := c.client.Call("Courier.QueueRemove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueHealth returns queue and database diagnostics.
func (c *Client) QueueHealth() (*QueueHealthResponse, error) {
	var resp QueueHealthResponse
	if err := c.client.Call("Courier.QueueHealth", QueueHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Enqueue stores a request for background delivery.
func (c *Client) Enqueue(req EnqueueRequest) (*EnqueueResponse, error) {
	var resp EnqueueResponse
	if err := c.client.Call("Courier.Enqueue", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit attempts one live delivery with queue fallback.
func (c *Client) Submit(req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.client.Call("Courier.Submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Flush runs a synchronous delivery pass.
func (c *Client) Flush() (*FlushResponse, error) {
	var resp FlushResponse
	if err := c.client.Call("Courier.Flush", FlushRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NetworkStatus returns the committed connectivity state.
func (c *Client) NetworkStatus() (*NetworkStatusResponse, error) {
	var resp NetworkStatusResponse
	if err := c.client.Call("Courier.NetworkStatus", NetworkStatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheGet fetches a cached payload.
func (c *Client) CacheGet(typ, key string) (*CacheGetResponse, error) {
	var resp CacheGetResponse
	req := CacheGetRequest{Type: typ, Key: key}
	if err := c.client.Call("Courier.CacheGet", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheSet stores a cached payload.
func (c *Client) CacheSet(req CacheSetRequest) (*CacheSetResponse, error) {
	var resp CacheSetResponse
	if err := c.client.Call("Courier.CacheSet", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheDelete removes a cached payload.
func (c *Client) CacheDelete(typ, key string) (*CacheDeleteResponse, error) {
	var resp CacheDeleteResponse
	req := CacheDeleteRequest{Type: typ, Key: key}
	if err := c.client.Call("Courier.CacheDelete", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheStats returns cache usage figures.
func (c *Client) CacheStats() (*CacheStatsResponse, error) {
	var resp CacheStatsResponse
	if err := c.client.Call("Courier.CacheStats", CacheStatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheSweep purges expired cache entries.
func (c *Client) CacheSweep() (*CacheSweepResponse, error) {
	var resp CacheSweepResponse
	if err := c.client.Call("Courier.CacheSweep", CacheSweepRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Courier.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
