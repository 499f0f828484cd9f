// Package netx models the device connectivity state consumed by the sync
// subsystem. The actual network detection lives outside the core (platform
// code implements Prober); this package defines the contract plus a simple
// HTTP reachability check.
package netx

import (
	"context"
	"net/http"
	"time"
)

// State is the currently active connectivity type.
type State int

const (
	StateNone State = iota
	StateCellular
	StateWifi
)

func (s State) String() string {
	switch s {
	case StateCellular:
		return "cellular"
	case StateWifi:
		return "wifi"
	default:
		return "none"
	}
}

// Prober reports the active connectivity type. Implementations must be safe
// for concurrent use.
type Prober interface {
	State(ctx context.Context) State
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) State

func (f ProberFunc) State(ctx context.Context) State { return f(ctx) }

// Static returns a Prober that always reports the given state. Useful in
// tests and on platforms without connectivity-type detection.
func Static(s State) Prober {
	return ProberFunc(func(context.Context) State { return s })
}

// CheckOnline reports whether url answers an HTTP HEAD within timeout.
// Status codes are ignored: any response means the host is reachable.
func CheckOnline(ctx context.Context, url string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return true
}
