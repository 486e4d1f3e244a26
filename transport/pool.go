package transport

import (
	"fmt"
	"sync"
)

// ChannelPool manages reusable connected Channels to a single agent
// address. Channels multiplex calls, so the pool exists for spreading
// load over several connections rather than for exclusivity.
//
// A buffered channel serves as the pool: FIFO, goroutine-safe, and
// blocking-on-empty comes for free.
type ChannelPool struct {
	mu      sync.Mutex
	pool    chan *Channel
	addr    string
	maxSize int
	cur     int
	factory func(addr string) (*Channel, error) // must return a connected channel
}

// NewChannelPool creates a pool for the given address. Channels are
// created lazily through the factory, up to maxSize.
func NewChannelPool(addr string, maxSize int, factory func(addr string) (*Channel, error)) *ChannelPool {
	return &ChannelPool{
		pool:    make(chan *Channel, maxSize),
		addr:    addr,
		maxSize: maxSize,
		factory: factory,
	}
}

// Get retrieves a channel: reuse an idle one if available, create a
// new one while under the limit, otherwise block until one is put
// back. Channels that dropped their connection are discarded.
func (p *ChannelPool) Get() (*Channel, error) {
	select {
	case ch := <-p.pool:
		if ch.State() != StateConnected {
			p.discard(ch)
			return p.createNew()
		}
		return ch, nil
	default:
		p.mu.Lock()
		under := p.cur < p.maxSize
		p.mu.Unlock()
		if under {
			return p.createNew()
		}
		ch := <-p.pool
		if ch.State() != StateConnected {
			p.discard(ch)
			return p.createNew()
		}
		return ch, nil
	}
}

// Put returns a channel to the pool. Dead channels are discarded.
func (p *ChannelPool) Put(ch *Channel) {
	if ch.State() != StateConnected {
		p.discard(ch)
		return
	}
	p.pool <- ch
}

// Close shuts down the pool and every pooled channel.
func (p *ChannelPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.pool)
	for ch := range p.pool {
		ch.Close()
		p.cur--
	}
	return nil
}

func (p *ChannelPool) discard(ch *Channel) {
	ch.Close()
	p.mu.Lock()
	p.cur--
	p.mu.Unlock()
}

func (p *ChannelPool) createNew() (*Channel, error) {
	p.mu.Lock()
	if p.cur >= p.maxSize {
		p.mu.Unlock()
		return nil, fmt.Errorf("channel pool for %s exhausted", p.addr)
	}
	p.cur++
	p.mu.Unlock()

	ch, err := p.factory(p.addr)
	if err != nil {
		p.mu.Lock()
		p.cur--
		p.mu.Unlock()
		return nil, err
	}
	return ch, nil
}
