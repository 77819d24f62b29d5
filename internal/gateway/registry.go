package gateway

import (
	"errors"
	"sync"
)

// maxConnsPerIP caps concurrent sockets from one remote host.
const maxConnsPerIP = 5

// ErrTooManyConnections is returned by the registry when a remote host
// already has maxConnsPerIP sockets open.
var ErrTooManyConnections = errors.New("gateway: too many connections from this address")

// registry is the process-wide map of active connections. It enforces the
// single-socket-per-device invariant (a new connection replaces and evicts
// the prior one) and the per-IP throttle.
type registry struct {
	mu       sync.Mutex
	byDevice map[string]*Conn
	byIP     map[string]int
}

func newRegistry() *registry {
	return &registry{
		byDevice: make(map[string]*Conn),
		byIP:     make(map[string]int),
	}
}

// acquire registers c as the active connection for its device and returns the
// connection it replaced, if any. The caller evicts the prior connection
// outside the registry lock.
func (r *registry) acquire(deviceID, ip string, c *Conn) (*Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byIP[ip] >= maxConnsPerIP {
		return nil, ErrTooManyConnections
	}
	prior := r.byDevice[deviceID]
	r.byDevice[deviceID] = c
	r.byIP[ip]++
	return prior, nil
}

// release removes c from the registry. A connection that has already been
// replaced leaves the newer entry untouched; its IP slot is still freed.
func (r *registry) release(deviceID, ip string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byDevice[deviceID] == c {
		delete(r.byDevice, deviceID)
	}
	if r.byIP[ip] > 0 {
		r.byIP[ip]--
		if r.byIP[ip] == 0 {
			delete(r.byIP, ip)
		}
	}
}

// active returns the current connection for a device, or nil.
func (r *registry) active(deviceID string) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byDevice[deviceID]
}
