////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MemoryTree is an in-memory TreeStore. It backs guest sessions, which
// bypass the remote store entirely, and doubles as the store fixture in
// tests. Nothing survives a restart and there is no network fan-out;
// subscription callbacks fire synchronously in the mutating goroutine, after
// the store lock is released.
type MemoryTree struct {
	mux    sync.Mutex
	root   map[string]interface{}
	subs   map[uint64]*treeSub
	nextID uint64
}

type treeSub struct {
	path []string
	cb   func(data []byte, err error)
}

// notification is a pending callback collected under the lock and delivered
// after it is released, so that callbacks may re-enter the store.
type notification struct {
	cb   func(data []byte, err error)
	data []byte
}

// NewMemoryTree creates an empty in-memory tree store.
func NewMemoryTree() *MemoryTree {
	return &MemoryTree{
		root: make(map[string]interface{}),
		subs: make(map[uint64]*treeSub),
	}
}

// Subscribe implements TreeStore.Subscribe. The initial callback is
// delivered before Subscribe returns.
func (t *MemoryTree) Subscribe(path string,
	cb func(data []byte, err error)) CancelFunc {

	parts := splitPath(path)

	t.mux.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = &treeSub{path: parts, cb: cb}
	initial := t.marshalLocked(parts)
	t.mux.Unlock()

	cb(initial, nil)

	return func() {
		t.mux.Lock()
		delete(t.subs, id)
		t.mux.Unlock()
	}
}

// Get implements TreeStore.Get.
func (t *MemoryTree) Get(path string) ([]byte, error) {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.marshalLocked(splitPath(path)), nil
}

// Push implements TreeStore.Push. Keys are random UUIDs, so they can never
// take the shape of a separator-joined pair of uids.
func (t *MemoryTree) Push(path string, v interface{}) (string, error) {
	key := uuid.New().String()
	return key, t.Set(path+"/"+key, v)
}

// Set implements TreeStore.Set.
func (t *MemoryTree) Set(path string, v interface{}) error {
	val, err := toJSONValue(v)
	if err != nil {
		return err
	}
	parts := splitPath(path)

	t.mux.Lock()
	t.setLocked(parts, val)
	pending := t.collectLocked(parts)
	t.mux.Unlock()

	deliver(pending)
	return nil
}

// Update implements TreeStore.Update. Field names containing slashes address
// nested children; all fields are applied before any subscriber is notified.
func (t *MemoryTree) Update(path string, fields map[string]interface{}) error {
	parts := splitPath(path)

	vals := make(map[string]interface{}, len(fields))
	for name, v := range fields {
		val, err := toJSONValue(v)
		if err != nil {
			return errors.WithMessagef(err, "field %q", name)
		}
		vals[name] = val
	}

	t.mux.Lock()
	for name, val := range vals {
		t.setLocked(append(append([]string{}, parts...),
			splitPath(name)...), val)
	}
	pending := t.collectLocked(parts)
	t.mux.Unlock()

	deliver(pending)
	return nil
}

// Remove implements TreeStore.Remove.
func (t *MemoryTree) Remove(path string) error {
	parts := splitPath(path)

	t.mux.Lock()
	t.removeLocked(parts)
	pending := t.collectLocked(parts)
	t.mux.Unlock()

	deliver(pending)
	return nil
}

// numSubscriptions reports the live subscription count.
func (t *MemoryTree) numSubscriptions() int {
	t.mux.Lock()
	defer t.mux.Unlock()
	return len(t.subs)
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// toJSONValue round-trips v through JSON so the tree holds only generic
// JSON values regardless of the caller's concrete type.
func toJSONValue(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WithMessage(err, "value does not marshal")
	}
	var out interface{}
	if err = json.Unmarshal(b, &out); err != nil {
		return nil, errors.WithMessage(err, "value does not round-trip")
	}
	return out, nil
}

// lookupLocked returns the node at parts, or nil if absent.
func (t *MemoryTree) lookupLocked(parts []string) interface{} {
	var node interface{} = t.root
	for _, p := range parts {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil
		}
		node, ok = m[p]
		if !ok {
			return nil
		}
	}
	return node
}

func (t *MemoryTree) marshalLocked(parts []string) []byte {
	node := t.lookupLocked(parts)
	if node == nil {
		return nil
	}
	b, err := json.Marshal(node)
	if err != nil {
		return nil
	}
	return b
}

// setLocked writes val at parts, materializing intermediate objects and
// overwriting any non-object in the way.
func (t *MemoryTree) setLocked(parts []string, val interface{}) {
	if len(parts) == 0 {
		if m, ok := val.(map[string]interface{}); ok {
			t.root = m
		}
		return
	}

	node := t.root
	for _, p := range parts[:len(parts)-1] {
		child, ok := node[p].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			node[p] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = val
}

func (t *MemoryTree) removeLocked(parts []string) {
	if len(parts) == 0 {
		t.root = make(map[string]interface{})
		return
	}

	node := t.root
	for _, p := range parts[:len(parts)-1] {
		child, ok := node[p].(map[string]interface{})
		if !ok {
			return
		}
		node = child
	}
	delete(node, parts[len(parts)-1])
}

// collectLocked gathers the callbacks affected by a change at parts together
// with their current payloads. A subscriber is affected when its path is a
// prefix of the changed path or vice versa.
func (t *MemoryTree) collectLocked(parts []string) []notification {
	var pending []notification
	for _, sub := range t.subs {
		if !pathsRelated(sub.path, parts) {
			continue
		}
		pending = append(pending,
			notification{cb: sub.cb, data: t.marshalLocked(sub.path)})
	}
	return pending
}

func pathsRelated(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func deliver(pending []notification) {
	for _, n := range pending {
		n.cb(n.data, nil)
	}
}
