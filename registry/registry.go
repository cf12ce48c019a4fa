// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry implements the process-wide, refcounted factory
// table (component E): lookup/install/acquire/release/iterate over
// content-hash-keyed records, with deletion decided centrally in
// Release rather than scattered across callers. It is deliberately
// generic over the stored factory value so that it has no import-time
// dependency on the remotedsp package that uses it: a Registry is
// constructed once by the process entry point (per the "make it
// injectable for tests" design note) and threaded through from there,
// never reached via a package-level global.
package registry

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by any operation addressing a hash that has
// no installed record.
var ErrNotFound = errors.New("registry: no record for hash")

type record[F any] struct {
	factory   F
	refs      int
	instances map[string]struct{}
}

// Registry is a mutex-guarded table of hash -> factory records with
// reference counting. The zero value is not usable; construct one with
// New.
type Registry[F any] struct {
	mu      sync.Mutex
	records map[string]*record[F]
}

// New returns an empty, ready-to-use registry.
func New[F any]() *Registry[F] {
	return &Registry[F]{records: make(map[string]*record[F])}
}

// Lookup returns the factory installed under hash, if any, without
// touching its refcount.
func (r *Registry[F]) Lookup(hash string) (F, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[hash]
	if !ok {
		var zero F
		return zero, false
	}
	return rec.factory, true
}

// Install registers a freshly created factory under hash with an
// initial refcount of 1. Installing over an existing hash replaces its
// factory value but preserves its refcount and instance set — this is
// the path a caller takes after confirming (via GetAvailableFactories)
// that a cache hit is stale and must be recompiled.
func (r *Registry[F]) Install(hash string, factory F) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[hash]; ok {
		rec.factory = factory
		return
	}
	r.records[hash] = &record[F]{factory: factory, refs: 1, instances: make(map[string]struct{})}
}

// Acquire increments the refcount of an existing record and returns
// its factory. It returns ErrNotFound if hash has no installed record
// — callers on a cache miss are expected to create and Install a new
// factory themselves.
func (r *Registry[F]) Acquire(hash string) (F, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[hash]
	if !ok {
		var zero F
		return zero, ErrNotFound
	}
	rec.refs++
	return rec.factory, nil
}

// AddInstance records that instanceID is bound to the factory under
// hash, so the record cannot be deleted while it remains.
func (r *Registry[F]) AddInstance(hash, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[hash]
	if !ok {
		return ErrNotFound
	}
	rec.instances[instanceID] = struct{}{}
	return nil
}

// RemoveInstance undoes AddInstance. It is not an error to remove an
// instance that was never added, or from a hash no longer present.
func (r *Registry[F]) RemoveInstance(hash, instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[hash]; ok {
		delete(rec.instances, instanceID)
	}
}

// Release decrements the refcount of the record under hash. When the
// refcount reaches zero and no instance remains bound to it, the
// record is deleted and destroy is invoked exactly once with the
// factory that was removed — never on any other Release call, and
// never more than once per Install. deleted reports whether this call
// triggered that deletion.
func (r *Registry[F]) Release(hash string, destroy func(F)) (deleted bool, err error) {
	r.mu.Lock()
	rec, ok := r.records[hash]
	if !ok {
		r.mu.Unlock()
		return false, ErrNotFound
	}
	rec.refs--
	if rec.refs > 0 || len(rec.instances) > 0 {
		r.mu.Unlock()
		return false, nil
	}
	delete(r.records, hash)
	factory := rec.factory
	r.mu.Unlock()

	if destroy != nil {
		destroy(factory)
	}
	return true, nil
}

// Iterate calls fn once per currently installed record, in no
// particular order. fn must not call back into the registry.
func (r *Registry[F]) Iterate(fn func(hash string, factory F)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, rec := range r.records {
		fn(hash, rec.factory)
	}
}

// RefCount reports the current refcount of hash, for diagnostics and
// tests. It returns 0, false if hash is not installed.
func (r *Registry[F]) RefCount(hash string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[hash]
	if !ok {
		return 0, false
	}
	return rec.refs, true
}

func (r *Registry[F]) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("registry(%d records)", len(r.records))
}
