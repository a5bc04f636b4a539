package guid

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	source = rand.New(rand.NewSource(time.Now().UnixNano()))
	mu     sync.Mutex
)

// New returns a fresh identifier in the 8-4-4-4-12 hex format. These
// identify lifecycle jobs; they need to be unique within one process,
// not cryptographically unguessable.
func New() string {
	b := make([]byte, 16)
	mu.Lock()
	source.Read(b)
	mu.Unlock()
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
