package engine

import (
	"sync"
	"time"
)

// txnGate admits any number of concurrent transactions, and gives an
// exclusive operation (a map resize or environment close) the environment
// to itself. While an exclusive operation waits, new transactions are held
// back so that it cannot be starved by a stream of overlapping readers.
//
// The wait is bounded: a goroutine may hold a read transaction and then
// write, and a resize triggered by that write can never see the
// environment idle.
type txnGate struct {
	mu     sync.Mutex
	active int
	closed bool
	// idle is closed when active reaches zero while an exclusive
	// operation waits.
	idle chan struct{}
	// held is non-nil while an exclusive operation holds or waits for the
	// gate, and is closed when it releases.
	held chan struct{}
}

// enter admits one transaction, waiting out any exclusive operation.
func (g *txnGate) enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for g.held != nil {
		var held = g.held
		g.mu.Unlock()
		<-held
		g.mu.Lock()
	}
	if g.closed {
		return ErrClosed
	}
	g.active++
	return nil
}

// leave releases a transaction admitted by enter.
func (g *txnGate) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active--; g.active == 0 && g.idle != nil {
		close(g.idle)
		g.idle = nil
	}
}

// exclusive runs fn once no transaction is active, waiting at most wait for
// active ones to finish. With closing, the gate admits nothing after fn
// succeeds.
func (g *txnGate) exclusive(wait time.Duration, closing bool, fn func() error) error {
	g.mu.Lock()
	for g.held != nil {
		var held = g.held
		g.mu.Unlock()
		<-held
		g.mu.Lock()
	}
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	var held = make(chan struct{})
	var idle chan struct{}
	g.held = held
	if g.active != 0 {
		idle = make(chan struct{})
		g.idle = idle
	}
	g.mu.Unlock()

	var err error
	if idle != nil {
		var timer = time.NewTimer(wait)
		select {
		case <-idle:
		case <-timer.C:
			err = ErrTxnActive
		}
		timer.Stop()
	}
	if err == nil {
		err = fn()
	}

	g.mu.Lock()
	if closing && err == nil {
		g.closed = true
	}
	g.idle, g.held = nil, nil
	close(held)
	g.mu.Unlock()
	return err
}
