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
	"runtime"
	"sync"
	"sync/atomic"

	ferrors "flydb/internal/errors"
	"flydb/internal/logging"
)

// ErrFiberCancelled is the synthetic error a fiber should re-raise, never
// swallow, when it observes its own cancellation via IsCancelled.
var ErrFiberCancelled error = ferrors.FiberIsCancelled()

// onExitSentinel marks the cord's on-exit slot as "the cord finished before
// anyone called cojoin". Any other non-nil value is a *Fiber waiting on it.
type onExitSentinel struct{}

var wontRun = &onExitSentinel{}

// Cord is an OS thread hosting an event loop and a fiber registry. Exactly
// one fiber runs "on" a cord at a time; scheduling is entirely cooperative.
type Cord struct {
	name string

	mu        sync.Mutex
	fibers    map[uint64]*Fiber
	ready     []*Fiber
	dead      []*Fiber
	nextFid   uint64
	readyCond *sync.Cond
	stopping  bool

	scheduler *Fiber

	onExit atomic.Pointer[interface{}]
	exitCh chan struct{}

	log *logging.Logger
}

// NewCord creates a cord and starts its scheduler goroutine bound to its own
// OS thread via runtime.LockOSThread, mirroring cord_start's one-thread-per-cord
// model.
func NewCord(name string) *Cord {
	c := &Cord{
		name:    name,
		fibers:  make(map[uint64]*Fiber),
		nextFid: ReservedFiberIDMax + 1,
		exitCh:  make(chan struct{}),
		log:     logging.NewLogger("cord." + name),
	}
	c.readyCond = sync.NewCond(&c.mu)

	sched := newFiber(c, SchedulerFiberID, "sched/"+name, nil)
	c.scheduler = sched
	c.fibers[SchedulerFiberID] = sched

	go c.threadMain()
	return c
}

// Name returns the cord's name.
func (c *Cord) Name() string { return c.name }

func (c *Cord) threadMain() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	c.schedulerLoop()
	close(c.exitCh)
	c.publishOnExit()
}

// schedulerLoop is the scheduler fiber: it walks the ready list in order and
// calls each fiber in turn, chaining caller pointers so control always comes
// back here.
func (c *Cord) schedulerLoop() {
	for {
		c.mu.Lock()
		for len(c.ready) == 0 && !c.stopping {
			c.readyCond.Wait()
		}
		if c.stopping && len(c.ready) == 0 {
			c.mu.Unlock()
			return
		}
		f := c.ready[0]
		c.ready = c.ready[1:]
		c.mu.Unlock()
		c.switchTo(c.scheduler, f, nil)
	}
}

// switchTo synchronously transfers control from `from` (normally the
// scheduler) to `to`, starting `to`'s goroutine on first use, and blocks
// until `to` yields or finishes.
func (c *Cord) switchTo(from, to *Fiber, args []interface{}) {
	to.mu.Lock()
	firstRun := !to.started
	to.started = true
	to.caller = from
	if args != nil {
		to.args = args
	}
	to.mu.Unlock()

	if firstRun {
		to.start()
	}
	to.resume <- struct{}{}
	<-from.resume
}

// New allocates a fiber (reusing a recycled one if available) and assigns it
// a fresh fid, wrapping around the reserved band. It never returns nil; in
// this implementation goroutine creation failure is not modeled as OOM.
func (c *Cord) New(name string, fn Func) *Fiber {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.dead); n > 0 {
		f := c.dead[n-1]
		c.dead = c.dead[:n-1]
		f.reset(name, fn)
		c.fibers[f.fid] = f
		return f
	}

	fid := c.nextFid
	c.nextFid++
	if c.nextFid == 0 {
		c.nextFid = ReservedFiberIDMax + 1
	}
	f := newFiber(c, fid, name, fn)
	c.fibers[fid] = f
	return f
}

func (f *Fiber) reset(name string, fn Func) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.name = name
	f.fn = fn
	f.flags = FlagCancellable
	f.caller = nil
	f.wake = nil
	f.onYield = nil
	f.onStop = nil
	f.diag = nil
	f.args = nil
	f.started = false
	f.finished = false
	f.region.Reset()
	f.resume = make(chan struct{})
}

func (c *Cord) recycle(f *Fiber) {
	c.mu.Lock()
	delete(c.fibers, f.fid)
	c.dead = append(c.dead, f)
	c.mu.Unlock()
}

// Start immediately transfers control to f with the given args - a
// synchronous call, not a scheduled wakeup. Must be invoked from the fiber
// currently running on this cord (normally the scheduler, via Wakeup, or
// another fiber making a direct nested call).
func (c *Cord) Start(caller *Fiber, f *Fiber, args ...interface{}) {
	c.switchTo(caller, f, args)
}

// Call is fiber_call: a synchronous transfer of control from caller to f,
// returning only once f yields or finishes. Equivalent to Start.
func Call(caller, f *Fiber, args ...interface{}) {
	caller.cord.switchTo(caller, f, args)
}

// Wakeup moves f to the tail of the ready list. Tail insertion is required:
// if A wakes B then C, B must run before C. If the ready list was empty,
// this posts a wakeup to the scheduler's condition variable (the loop).
func (c *Cord) Wakeup(f *Fiber) {
	c.mu.Lock()
	wasEmpty := len(c.ready) == 0
	c.ready = append(c.ready, f)
	c.mu.Unlock()
	if wasEmpty {
		c.readyCond.Signal()
	} else {
		c.readyCond.Signal()
	}
}

// Cancel sets CANCELLED on f. If f is cancellable, not dead, and not the
// caller itself, it is woken so it can observe the flag at its next
// cooperative check. Calling Cancel on a dead fiber is a no-op.
func (c *Cord) Cancel(self, f *Fiber) {
	f.mu.Lock()
	if f.flags&FlagDead != 0 {
		f.mu.Unlock()
		return
	}
	f.flags |= FlagCancelled
	cancellable := f.flags&FlagCancellable != 0
	f.mu.Unlock()

	if cancellable && f != self {
		c.Wakeup(f)
	}
}

// Join requires f be joinable. If f has not finished, the caller appends
// itself to f's wake list and yields. On resume the caller adopts f's
// diagnostic and recycles it.
func Join(caller, f *Fiber) error {
	if !f.isJoinable() {
		return fmt.Errorf("fiber %d (%s) is not joinable", f.fid, f.name)
	}

	f.mu.Lock()
	dead := f.flags&FlagDead != 0
	if !dead {
		f.wake = append(f.wake, caller)
	}
	f.mu.Unlock()

	if !dead {
		Yield(caller)
	}

	diag := f.Diag()
	caller.setDiag(diag)
	caller.cord.recycle(f)
	return diag
}

// Stop drains the ready queue and stops the scheduler loop once it is empty.
func (c *Cord) Stop() {
	c.mu.Lock()
	c.stopping = true
	c.mu.Unlock()
	c.readyCond.Broadcast()
}

// Wait blocks until the cord's thread has exited (after Stop and drain).
func (c *Cord) Wait() {
	<-c.exitCh
}

func (c *Cord) publishOnExit() {
	for {
		cur := c.onExit.Load()
		if cur == nil {
			var v interface{} = wontRun
			if c.onExit.CompareAndSwap(nil, &v) {
				return
			}
			continue
		}
		// A cojoin handler installed itself first; wake it.
		if waiter, ok := (*cur).(*cojoinWaiter); ok {
			waiter.notify()
			return
		}
		return
	}
}

type cojoinWaiter struct {
	cord    *Cord
	waker   *Fiber
	wakerOn *Cord
}

func (w *cojoinWaiter) notify() {
	w.wakerOn.Wakeup(w.waker)
}

// Cojoin lets a fiber on another cord (the parent) wait, by yielding rather
// than blocking the OS thread, until this cord's thread exits. The waiting
// fiber is made non-cancellable for the duration to protect the handoff.
//
// The on-exit slot starts nil. Cojoin races the cord's own exit: whichever
// side gets there first via compare-and-swap decides whether the child
// notifies an already-installed waiter, or the waiter discovers the child
// already published the "won't run" sentinel and returns immediately.
func (c *Cord) Cojoin(waiterCord *Cord, waiter *Fiber) {
	prevCancellable := waiter.flags&FlagCancellable != 0
	waiter.SetCancellable(false)
	defer waiter.SetCancellable(prevCancellable)

	w := &cojoinWaiter{cord: c, waker: waiter, wakerOn: waiterCord}
	var v interface{} = w
	for {
		cur := c.onExit.Load()
		if cur != nil {
			if _, already := (*cur).(*onExitSentinel); already {
				return // child already exited; nothing to wait for
			}
		}
		if c.onExit.CompareAndSwap(cur, &v) {
			break
		}
	}
	Yield(waiter)
}
