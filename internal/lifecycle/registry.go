package lifecycle

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// connections tracks open connections in this process so that an upgrader
// can ask them to yield without waiting for their next poll.
var connections = &registry{conns: make(map[string]map[*Conn]struct{})}

type registry struct {
	mu    sync.Mutex
	conns map[string]map[*Conn]struct{}
}

func (r *registry) add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[c.path]
	if !ok {
		set = make(map[*Conn]struct{})
		r.conns[c.path] = set
	}
	set[c] = struct{}{}
}

func (r *registry) remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.conns[c.path]
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, c.path)
	}
}

// notify asks every connection on path below target to close itself.
// Returns the number of connections that yielded.
func (r *registry) notify(path string, target int, source string) int {
	r.mu.Lock()
	var stale []*Conn
	for c := range r.conns[path] {
		if c.version < target {
			stale = append(stale, c)
		}
	}
	r.mu.Unlock()

	// Outside the registry lock: shutdown removes the connection again.
	for _, c := range stale {
		c.versionChange(target, source)
	}
	return len(stale)
}

// count returns the number of open connections on path.
func (r *registry) count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[path])
}

// upgradeRequest is the on-disk notice of a pending upgrade, read by
// connections in other processes. Seq grows with every publish by the same
// owner, so a live upgrader never republishes an identical record.
type upgradeRequest struct {
	Version int
	Owner   string
	Seq     uint64
}

func (u upgradeRequest) String() string {
	return fmt.Sprintf("%d %s %d\n", u.Version, u.Owner, u.Seq)
}

// publishRequest writes the request atomically (temp file + rename).
func publishRequest(path string, req upgradeRequest) error {
	tmp := path + "." + req.Owner + ".tmp"
	if err := os.WriteFile(tmp, []byte(req.String()), 0o644); err != nil {
		return fmt.Errorf("write upgrade request: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish upgrade request: %w", err)
	}
	return nil
}

// readRequest returns the pending request. ok is false when no request is
// pending.
func readRequest(path string) (req upgradeRequest, ok bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return upgradeRequest{}, false, nil
	}
	if err != nil {
		return upgradeRequest{}, false, err
	}

	if _, err := fmt.Sscanf(strings.TrimSpace(string(data)), "%d %s %d", &req.Version, &req.Owner, &req.Seq); err != nil {
		return upgradeRequest{}, false, fmt.Errorf("parse upgrade request: %w", err)
	}
	return req, true, nil
}

// withdrawRequest removes the request file if owner still owns it.
func withdrawRequest(path, owner string) error {
	req, ok, err := readRequest(path)
	if err != nil || !ok || req.Owner != owner {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("withdraw upgrade request: %w", err)
	}
	return nil
}
