package registry

import (
	"sync"
)

// readChunkSize is the unit in which response bodies are drained from
// upstream connections.
const readChunkSize = 16 << 10

type bufferPool struct {
	pool sync.Pool
}

func newBufferPool(size int) *bufferPool {
	bp := &bufferPool{}
	bp.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return bp
}

func (p *bufferPool) Get() *[]byte {
	return p.pool.Get().(*[]byte) //nolint:forcetypeassert // Only *[]byte is ever stored.
}

func (p *bufferPool) Put(b *[]byte) {
	p.pool.Put(b)
}
