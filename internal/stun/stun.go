package stun

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/homeboy445/fileSharerApp/pkg/logger"
	"github.com/pion/stun/v2"
)

const (
	defaultServer    = "stun.l.google.com:19302"
	perServerTimeout = 2 * time.Second
)

// Client probes STUN servers for the public endpoint of this host. A
// successful probe means UDP leaves the network, so a direct channel is
// worth attempting.
type Client struct {
	servers         []string
	mu              sync.RWMutex
	currentEndpoint string
}

type EndpointInfo struct {
	PublicEndpoint string
	Server         string
	Changed        bool
}

// NewClient takes a comma separated list of host:port servers, tried in
// order.
func NewClient(servers string) *Client {
	var list []string
	for _, s := range strings.Split(servers, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	if len(list) == 0 {
		list = []string{defaultServer}
	}
	return &Client{servers: list}
}

// ICEServerURLs lists the servers in ICE url form.
func (s *Client) ICEServerURLs() []string {
	urls := make([]string, len(s.servers))
	for i, addr := range s.servers {
		urls[i] = "stun:" + addr
	}
	return urls
}

func (s *Client) CurrentEndpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentEndpoint
}

// QueryEndpoint asks each server in turn until one answers.
func (s *Client) QueryEndpoint(ctx context.Context) (*EndpointInfo, error) {
	var errs []error
	for _, addr := range s.servers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		endpoint, err := s.bind(ctx, addr)
		if err != nil {
			logger.Log.Debug("STUN server did not answer", "server", addr, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}

		s.mu.Lock()
		changed := s.currentEndpoint != endpoint
		s.currentEndpoint = endpoint
		s.mu.Unlock()
		if changed {
			logger.Log.Info("STUN endpoint discovered", "endpoint", endpoint, "server", addr)
		}
		return &EndpointInfo{PublicEndpoint: endpoint, Server: addr, Changed: changed}, nil
	}
	return nil, fmt.Errorf("STUN query failed: %w", errors.Join(errs...))
}

// bind runs one binding request against addr.
func (s *Client) bind(parent context.Context, addr string) (string, error) {
	ctx, cancel := context.WithTimeout(parent, perServerTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()
	client, err := stun.NewClient(conn)
	if err != nil {
		return "", fmt.Errorf("failed to create STUN client: %w", err)
	}
	defer client.Close()
	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	var xorAddr stun.XORMappedAddress
	var queryErr error
	err = client.Do(stun.MustBuild(stun.TransactionID, stun.BindingRequest), func(res stun.Event) {
		if res.Error != nil {
			queryErr = res.Error
			return
		}
		if err := xorAddr.GetFrom(res.Message); err != nil {
			queryErr = fmt.Errorf("failed to get XOR mapped address: %w", err)
		}
	})
	if err == nil {
		err = queryErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return net.JoinHostPort(xorAddr.IP.String(), strconv.Itoa(xorAddr.Port)), nil
}
