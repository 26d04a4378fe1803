package chunk

import (
	"sync"

	"github.com/vango-dev/chunk/pkg/storage"
)

var (
	engineMu sync.RWMutex
	engine   storage.Engine = storage.NopEngine{}
)

// ConfigureEngine sets the process-wide storage engine used by stores
// created afterward without WithEngine. Passing nil restores the no-op
// engine. Existing stores keep the engine they were created with.
func ConfigureEngine(e storage.Engine) {
	engineMu.Lock()
	defer engineMu.Unlock()
	if e == nil {
		e = storage.NopEngine{}
	}
	engine = e
}

// Engine returns the process-wide storage engine.
func Engine() storage.Engine {
	engineMu.RLock()
	defer engineMu.RUnlock()
	return engine
}
