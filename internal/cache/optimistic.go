package cache

import (
	"context"

	"github.com/bassista/snapgram/internal/logger"
)

// Patch is an optimistic change to one cached entry, applied before the write
// it anticipates has completed.
type Patch struct {
	Key   Key
	Apply func(current any) (any, bool)
}

// PatchOf builds a Patch for entries holding a T. Entries holding anything
// else are left alone.
func PatchOf[T any](key Key, fn func(T) T) Patch {
	return Patch{Key: key, Apply: func(current any) (any, bool) {
		v, ok := current.(T)
		if !ok {
			return nil, false
		}
		return fn(v), true
	}}
}

type appliedPatch struct {
	entry   *entry
	seq     uint64
	prevSeq uint64
	base    any
}

// Mutate applies patches to the cached entries that hold data, runs write and
// settles the patches. On success the patched entries and the targets of w are
// invalidated; the next successful refetch confirms them. On failure every
// patch is rolled back and the entries are flagged reverted.
func (c *Coordinator) Mutate(ctx context.Context, w Write, id string, patches []Patch, write func(ctx context.Context) error) error {
	applied := c.applyPatches(patches)

	if err := write(ctx); err != nil {
		c.revert(applied)
		logger.WithComponent("cache").WithError(err).Debugf("%s(%s) failed, %d patches reverted", w, id, len(applied))
		return err
	}

	c.mu.Lock()
	for _, p := range applied {
		p.entry.pending--
		c.markStaleLocked(p.entry)
	}
	c.mu.Unlock()

	c.Apply(ctx, w, id)
	return nil
}

func (c *Coordinator) applyPatches(patches []Patch) []appliedPatch {
	c.mu.Lock()
	defer c.mu.Unlock()

	var applied []appliedPatch
	for _, p := range patches {
		e := c.entryLocked(p.Key, false)
		if e == nil || !e.hasValue {
			continue
		}
		next, ok := p.Apply(e.value)
		if !ok {
			continue
		}
		c.patchSeq++
		applied = append(applied, appliedPatch{entry: e, seq: c.patchSeq, prevSeq: e.patchSeq, base: e.value})
		e.value = next
		e.patchSeq = c.patchSeq
		e.state = StatePending
		e.pending++
	}
	return applied
}

func (c *Coordinator) revert(applied []appliedPatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(applied) - 1; i >= 0; i-- {
		p := applied[i]
		e := p.entry
		e.pending--
		e.state = StateReverted
		if e.patchSeq == p.seq {
			e.value = p.base
			e.patchSeq = p.prevSeq
			continue
		}
		// A later patch sits on top of this one; let a refetch sort it out.
		c.markStaleLocked(e)
	}
}
