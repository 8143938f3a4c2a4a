package bridge

import (
	"context"
	"runtime"
)

// RunGarbageCollection forces a collection. goja objects live on the Go
// heap, so this is a full runtime.GC; it returns how many collection cycles
// completed meanwhile.
func (c *Context) RunGarbageCollection() (int, error) {
	var cycles int
	err := c.guard(context.Background(), OpRunGC, func(s *opScope) error {
		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)
		runtime.GC()
		runtime.ReadMemStats(&after)
		cycles = int(after.NumGC - before.NumGC)
		return nil
	})
	return cycles, err
}
