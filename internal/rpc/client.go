package rpc

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls SessionControl over a lazily dialed, persistent connection.
type Client struct {
	addr string
	opts []grpc.DialOption

	mu   sync.RWMutex
	conn *grpc.ClientConn
}

func NewClient(addr string, opts ...grpc.DialOption) *Client {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &Client{addr: addr, opts: opts}
}

func (c *Client) getConn(ctx context.Context) (*grpc.ClientConn, error) {
	c.mu.RLock()
	if c.conn != nil {
		defer c.mu.RUnlock()
		return c.conn, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := grpc.DialContext(ctx, c.addr, c.opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

// Reconnect drops the connection and dials again after an exponential backoff with jitter.
func (c *Client) Reconnect(ctx context.Context, attempt int) error {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	base := 200 * time.Millisecond
	sleep := time.Duration(1<<uint(min(attempt, 5))) * base
	jitter := time.Duration(rand.Int63n(int64(base)))
	timer := time.NewTimer(sleep + jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	_, err := c.getConn(ctx)
	return err
}

func (c *Client) Submit(ctx context.Context, req map[string]any) (map[string]any, error) {
	return c.invoke(ctx, "Submit", req)
}

func (c *Client) State(ctx context.Context, sessionID string) (map[string]any, error) {
	return c.invoke(ctx, "State", map[string]any{"session_id": sessionID})
}

func (c *Client) invoke(ctx context.Context, method string, req map[string]any) (map[string]any, error) {
	conn, err := c.getConn(ctx)
	if err != nil {
		return nil, err
	}
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
