package bridge

import (
	"time"
)

// Recorder observes context lifecycles and every engine operation,
// regardless of whether the context gathers statistics.
type Recorder interface {
	ContextCreated()
	ContextDestroyed()
	RecordOperation(op string, d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ContextCreated() {}
func (nopRecorder) ContextDestroyed() {}
func (nopRecorder) RecordOperation(string, time.Duration, error) {}

// measuring reports whether anyone consumes operation timings.
func (c *Context) measuring() bool {
	if c.cfg.GatherStats {
		return true
	}
	_, nop := c.recorder.(nopRecorder)
	return !nop
}

// instrument runs body and accounts for it under op.
func (c *Context) instrument(op string, body func() error) error {
	if !c.measuring() {
		return body()
	}

	start := time.Now()
	err := body()
	elapsed := time.Since(start)

	if c.cfg.GatherStats {
		c.currentStats().add(op, elapsed)
	}
	c.recorder.RecordOperation(op, elapsed, err)
	return err
}

func (c *Context) currentStats() *Statistics {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	return c.stats
}

func (c *Context) currentMessages() *Messages {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	return c.messages
}

// Statistics returns the live accumulator.
func (c *Context) Statistics() *Statistics {
	c.prepare()
	return c.currentStats()
}

// ResetStatistics swaps in an empty accumulator and returns it. Earlier
// references keep their contents.
func (c *Context) ResetStatistics() *Statistics {
	c.prepare()
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	c.stats = newStatistics()
	return c.stats
}

// Messages returns the live message buffer.
func (c *Context) Messages() *Messages {
	c.prepare()
	return c.currentMessages()
}

// ResetMessages swaps in an empty message buffer and returns it.
func (c *Context) ResetMessages() *Messages {
	c.prepare()
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	c.messages = newMessages()
	return c.messages
}
