package gateway

import (
	"errors"
	"fmt"
	"testing"
)

func TestRegistryReplacesPrior(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	c1 := &Conn{deviceID: "d1"}
	c2 := &Conn{deviceID: "d1"}

	prior, err := r.acquire("d1", "1.2.3.4", c1)
	if err != nil || prior != nil {
		t.Fatalf("first acquire: prior=%v err=%v", prior, err)
	}
	prior, err = r.acquire("d1", "1.2.3.4", c2)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if prior != c1 {
		t.Errorf("second acquire should return the replaced connection")
	}
	if r.active("d1") != c2 {
		t.Errorf("active connection should be the newer one")
	}

	// The evicted connection's release must not unregister the newer one.
	r.release("d1", "1.2.3.4", c1)
	if r.active("d1") != c2 {
		t.Errorf("release of the old connection removed the new one")
	}
	r.release("d1", "1.2.3.4", c2)
	if r.active("d1") != nil {
		t.Errorf("device still registered after release")
	}
}

func TestRegistryPerIPThrottle(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	for i := 0; i < maxConnsPerIP; i++ {
		device := fmt.Sprintf("d%d", i)
		if _, err := r.acquire(device, "9.9.9.9", &Conn{deviceID: device}); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}

	if _, err := r.acquire("overflow", "9.9.9.9", &Conn{}); !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("want ErrTooManyConnections, got %v", err)
	}

	// A different host is unaffected.
	if _, err := r.acquire("elsewhere", "8.8.8.8", &Conn{}); err != nil {
		t.Errorf("different IP refused: %v", err)
	}

	// Freeing one slot admits the next connection.
	r.release("d0", "9.9.9.9", r.active("d0"))
	if _, err := r.acquire("overflow", "9.9.9.9", &Conn{}); err != nil {
		t.Errorf("acquire after release: %v", err)
	}
}
