/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package fiber

import (
	"fmt"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestFiberIDsAreReservedAbove100(t *testing.T) {
	c := NewCord("t1")
	defer c.Stop()

	f := c.New("worker", func(self *Fiber, args ...interface{}) error { return nil })
	if f.ID() <= ReservedFiberIDMax {
		t.Fatalf("fid %d must be > %d", f.ID(), ReservedFiberIDMax)
	}
	if c.scheduler.ID() != SchedulerFiberID {
		t.Fatalf("scheduler fid = %d, want %d", c.scheduler.ID(), SchedulerFiberID)
	}
}

func TestWakeupOrderingIsFIFO(t *testing.T) {
	c := NewCord("t2")
	defer c.Stop()

	var order []string
	done := make(chan struct{})

	a := c.New("a", func(self *Fiber, args ...interface{}) error {
		order = append(order, "a")
		return nil
	})
	b := c.New("b", func(self *Fiber, args ...interface{}) error {
		order = append(order, "b")
		close(done)
		return nil
	})

	c.Wakeup(a)
	c.Wakeup(b)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fibers to run")
	}
	time.Sleep(10 * time.Millisecond)

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("got order %v, want [a b]", order)
	}
}

func TestSleepZeroYieldsToOthers(t *testing.T) {
	c := NewCord("t3")
	defer c.Stop()

	var otherRan bool
	doneCh := make(chan struct{})

	other := c.New("other", func(self *Fiber, args ...interface{}) error {
		otherRan = true
		return nil
	})

	main := c.New("main", func(self *Fiber, args ...interface{}) error {
		c.Wakeup(other)
		Sleep(self, 0)
		close(doneCh)
		return nil
	})

	c.Wakeup(main)

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	time.Sleep(10 * time.Millisecond)
	if !otherRan {
		t.Fatal("fiber_sleep(0) did not give other ready fiber a chance to run")
	}
}

func TestCancelDeadFiberIsNoop(t *testing.T) {
	c := NewCord("t4")
	defer c.Stop()

	f := c.New("short", func(self *Fiber, args ...interface{}) error { return nil })
	doneCh := make(chan struct{})
	watcher := c.New("watcher", func(self *Fiber, args ...interface{}) error {
		Join(self, f)
		close(doneCh)
		return nil
	})
	f.SetJoinable(true)

	c.Wakeup(f)
	time.Sleep(20 * time.Millisecond)
	c.Wakeup(watcher)

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}

	// Should not panic or block.
	c.Cancel(nil, f)
	if !f.IsDead() {
		t.Fatal("expected fiber to be dead")
	}
}

func TestJoinAdoptsDiagnostic(t *testing.T) {
	c := NewCord("t5")
	defer c.Stop()

	sentinel := ErrFiberCancelled
	worker := c.New("worker", func(self *Fiber, args ...interface{}) error {
		return sentinel
	})
	worker.SetJoinable(true)

	resultCh := make(chan error, 1)
	joiner := c.New("joiner", func(self *Fiber, args ...interface{}) error {
		resultCh <- Join(self, worker)
		return nil
	})

	c.Wakeup(worker)
	time.Sleep(20 * time.Millisecond)
	c.Wakeup(joiner)

	select {
	case err := <-resultCh:
		if err != sentinel {
			t.Fatalf("got %v, want %v", err, sentinel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestRegionResetsAboveThresholdFreesSlabs(t *testing.T) {
	r := newRegion()
	r.Alloc(regionGCThreshold + 1)
	if r.Used() <= regionGCThreshold {
		t.Fatal("expected usage above threshold")
	}
	r.Reset()
	if r.slabs != nil || r.cur != nil {
		t.Fatal("expected slabs freed after exceeding GC threshold")
	}
}

func TestRegionResetBelowThresholdKeepsSlabs(t *testing.T) {
	r := newRegion()
	r.Alloc(16)
	r.Reset()
	if r.slabs == nil {
		t.Fatal("expected slab retained below GC threshold")
	}
}

// TestCojoinWaitsForCordExit drives the exact pattern a dedicated-cord writer
// uses: a fiber on one cord (the "owner") cojoins another cord's exit instead
// of blocking its OS thread on it, and only resumes once the child cord's
// thread has actually finished.
func TestCojoinWaitsForCordExit(t *testing.T) {
	owner := NewCord("cojoin-owner")
	defer owner.Stop()
	child := NewCord("cojoin-child")

	var childRan bool
	childDone := make(chan struct{})
	childFiber := child.New("child-work", func(self *Fiber, args ...interface{}) error {
		childRan = true
		close(childDone)
		child.Stop()
		return nil
	})
	child.Wakeup(childFiber)

	<-childDone
	// Give the child's thread a moment to actually reach publishOnExit
	// after Stop() drains its ready queue - Cojoin must still observe it
	// correctly whichever side of the CAS race wins.
	time.Sleep(10 * time.Millisecond)

	joined := make(chan struct{})
	waiter := owner.New("cojoin-wait", func(self *Fiber, args ...interface{}) error {
		child.Cojoin(owner, self)
		close(joined)
		return nil
	})
	owner.Wakeup(waiter)

	select {
	case <-joined:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Cojoin to observe the child cord's exit")
	}
	if !childRan {
		t.Fatal("expected the child cord's fiber to have run")
	}

	select {
	case <-child.exitCh:
	default:
		t.Fatal("expected the child cord's exitCh to be closed by the time Cojoin returns")
	}
}

// TestCojoinInstalledBeforeChildExits covers the other side of the race
// Cojoin's CAS loop resolves: the waiter installs itself on the child's
// on-exit slot before the child cord has finished, so the child's own
// publishOnExit must find and wake it instead of just publishing the
// "won't run" sentinel.
func TestCojoinInstalledBeforeChildExits(t *testing.T) {
	owner := NewCord("cojoin-owner-early")
	defer owner.Stop()
	child := NewCord("cojoin-child-early")

	joined := make(chan struct{})
	waiter := owner.New("cojoin-wait-early", func(self *Fiber, args ...interface{}) error {
		child.Cojoin(owner, self)
		close(joined)
		return nil
	})
	owner.Wakeup(waiter)

	// Give the waiter a chance to install itself on child's onExit slot
	// before child does any work at all.
	time.Sleep(10 * time.Millisecond)

	childFiber := child.New("child-work-early", func(self *Fiber, args ...interface{}) error {
		child.Stop()
		return nil
	})
	child.Wakeup(childFiber)

	select {
	case <-joined:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an early-installed Cojoin waiter to be woken")
	}
}

// TestPoolsFanOutAcrossCordsConcurrently runs several independent cord/pool
// pairs - each its own OS-thread-bound scheduler, per NewCord's one
// thread-per-cord model - at once via errgroup, collecting the first
// failure across them the way the teacher's multi-target storage tests do.
func TestPoolsFanOutAcrossCordsConcurrently(t *testing.T) {
	const cords = 5
	const tasksPerCord = 4

	var g errgroup.Group
	for i := 0; i < cords; i++ {
		i := i
		g.Go(func() error {
			c := NewCord(fmt.Sprintf("pooltest-%d", i))
			defer c.Stop()

			pool := NewPool(c, "worker", tasksPerCord)
			done := make(chan struct{}, tasksPerCord)
			for j := 0; j < tasksPerCord; j++ {
				pool.Submit(func(self *Fiber, args ...interface{}) error {
					done <- struct{}{}
					return nil
				})
			}

			for k := 0; k < tasksPerCord; k++ {
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					return fmt.Errorf("cord %d: timed out waiting for tasks", i)
				}
			}
			if pool.Submitted() != int64(tasksPerCord) {
				return fmt.Errorf("cord %d: expected %d submitted, got %d", i, tasksPerCord, pool.Submitted())
			}
			if i == 2 {
				return fmt.Errorf("cord %d: simulated downstream failure", i)
			}
			return nil
		})
	}

	if err := g.Wait(); err == nil {
		t.Fatal("expected errgroup to propagate the failing cord's error")
	}
}
