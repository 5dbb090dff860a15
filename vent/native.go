package vent

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/dtls/v2"
)

const maxDatagramSize = 8192

// NativeConfig carries the connection parameters for a NativeClient.
type NativeConfig struct {
	Host         string
	Port         int
	Identity     string
	Key          []byte
	WifiDeviceID string

	// ConnectTimeout bounds Connect when the caller's context has no
	// deadline of its own (default 30s).
	ConnectTimeout time.Duration
}

// NativeClient speaks the unit's native wifi protocol: a DTLS-PSK session
// carrying one JSON message per datagram. It holds no reconnect logic; a
// closed client can be reconnected by calling Connect again.
type NativeClient struct {
	cfg NativeConfig

	mu      sync.Mutex
	conn    net.Conn
	closing atomic.Bool
}

func NewNativeClient(cfg NativeConfig) *NativeClient {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	return &NativeClient{cfg: cfg}
}

// Connect establishes the PSK session. Bounded by ctx, falling back to the
// configured connect timeout.
func (c *NativeClient) Connect(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%v:%v", c.cfg.Host, c.cfg.Port))
	if err != nil {
		return fmt.Errorf("resolving device address: %w", err)
	}

	dtlsConfig := &dtls.Config{
		PSK: func(hint []byte) ([]byte, error) {
			return c.cfg.Key, nil
		},
		PSKIdentityHint: []byte(c.cfg.Identity),
		CipherSuites:    []dtls.CipherSuiteID{dtls.TLS_PSK_WITH_AES_128_GCM_SHA256},
		ConnectContextMaker: func() (context.Context, func()) {
			return context.WithCancel(ctx)
		},
	}

	conn, err := dtls.Dial("udp", addr, dtlsConfig)
	if err != nil {
		return fmt.Errorf("dialing %v: %w", addr, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.closing.Store(false)
	return nil
}

// Receive blocks for the next datagram and decodes it.
func (c *NativeClient) Receive(ctx context.Context) (Message, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrClosed
	}

	// Unblock the read when the context goes away.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	buf := make([]byte, maxDatagramSize)
	n, err := conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil || c.closing.Load() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("reading message: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(buf[:n], &msg); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	return msg, nil
}

// Send serializes and transmits one message.
func (c *NativeClient) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || c.closing.Load() {
		return ErrClosed
	}

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// Close tears the session down. Safe to call repeatedly.
func (c *NativeClient) Close() error {
	c.closing.Store(true)

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Closing reports whether the client is closed or tearing down.
func (c *NativeClient) Closing() bool {
	if c.closing.Load() {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == nil
}
