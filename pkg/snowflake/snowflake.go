// Package snowflake wraps github.com/bwmarrin/snowflake behind a process-wide
// node so repositories can mint int64 IDs without wiring a generator through
// every constructor.
package snowflake

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.RWMutex
	node *snowflake.Node
)

// Init configures the process-wide node. Node IDs must be in [0, 1023].
func Init(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	mu.Lock()
	node = n
	mu.Unlock()
	return nil
}

// NextID returns a new unique ID. Init must have been called first.
func NextID() int64 {
	mu.RLock()
	n := node
	mu.RUnlock()
	if n == nil {
		// Fall back to node 0 so tests that forget Init still work.
		if err := Init(0); err != nil {
			panic("snowflake: " + err.Error())
		}
		mu.RLock()
		n = node
		mu.RUnlock()
	}
	return n.Generate().Int64()
}
