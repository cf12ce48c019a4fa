// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeFactory struct {
	id        string
	destroyed bool
}

func TestInstallLookupAcquire(t *testing.T) {
	r := New[*fakeFactory]()
	f := &fakeFactory{id: "abc"}
	r.Install("abc", f)

	got, ok := r.Lookup("abc")
	require.True(t, ok)
	require.Same(t, f, got)

	refs, ok := r.RefCount("abc")
	require.True(t, ok)
	require.Equal(t, 1, refs)

	got, err := r.Acquire("abc")
	require.NoError(t, err)
	require.Same(t, f, got)
	refs, _ = r.RefCount("abc")
	require.Equal(t, 2, refs)
}

func TestAcquireMissingHash(t *testing.T) {
	r := New[*fakeFactory]()
	_, err := r.Acquire("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

// a record is deleted, and destroy called once, only when its refcount
// has reached zero and no instance remains bound to it.
func TestReleaseDeletesOnlyAtZeroRefsAndNoInstances(t *testing.T) {
	r := New[*fakeFactory]()
	f := &fakeFactory{id: "x"}
	r.Install("x", f) // refs=1

	_, err := r.Acquire("x") // refs=2
	require.NoError(t, err)

	destroyCalls := 0
	destroy := func(got *fakeFactory) {
		destroyCalls++
		got.destroyed = true
	}

	deleted, err := r.Release("x", destroy) // refs=1
	require.NoError(t, err)
	require.False(t, deleted)
	require.Equal(t, 0, destroyCalls)

	require.NoError(t, r.AddInstance("x", "inst-1"))
	deleted, err = r.Release("x", destroy) // refs=0 but instance remains
	require.NoError(t, err)
	require.False(t, deleted)
	require.Equal(t, 0, destroyCalls)

	r.RemoveInstance("x", "inst-1")
	deleted, err = r.Release("x", destroy) // refs already 0, instance gone: deletes now
	require.NoError(t, err)
	require.True(t, deleted)
	require.Equal(t, 1, destroyCalls)
	require.True(t, f.destroyed)

	_, ok := r.Lookup("x")
	require.False(t, ok)

	// a further Release against the now-deleted hash is a not-found,
	// not a second destroy call.
	_, err = r.Release("x", destroy)
	require.True(t, errors.Is(err, ErrNotFound))
	require.Equal(t, 1, destroyCalls)
}

func TestIterate(t *testing.T) {
	r := New[*fakeFactory]()
	r.Install("a", &fakeFactory{id: "a"})
	r.Install("b", &fakeFactory{id: "b"})

	seen := map[string]bool{}
	r.Iterate(func(hash string, f *fakeFactory) {
		seen[hash] = true
	})
	require.Equal(t, map[string]bool{"a": true, "b": true}, seen)
}
