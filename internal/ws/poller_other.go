//go:build !linux

package ws

import (
	"net"
	"sync"
)

// poller is the development fallback for platforms without epoll. Every
// socket is reported ready again as soon as the previous read finished;
// the server's read deadline bounds how long an idle socket holds a
// worker.
type poller struct {
	mu    sync.Mutex
	socks map[net.Conn]chan struct{}
	ready chan net.Conn
	done  chan struct{}
}

func newPoller() (*poller, error) {
	return &poller{
		socks: make(map[net.Conn]chan struct{}),
		ready: make(chan net.Conn, 256),
		done:  make(chan struct{}),
	}, nil
}

func (p *poller) add(conn net.Conn) error {
	resume := make(chan struct{}, 1)
	p.mu.Lock()
	p.socks[conn] = resume
	p.mu.Unlock()
	go p.watch(conn, resume)
	return nil
}

func (p *poller) watch(conn net.Conn, resume chan struct{}) {
	for {
		select {
		case p.ready <- conn:
		case <-p.done:
			return
		}
		select {
		case _, ok := <-resume:
			if !ok {
				return
			}
		case <-p.done:
			return
		}
	}
}

// drained re-arms the socket after the server finished a read.
func (p *poller) drained(conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if resume, ok := p.socks[conn]; ok {
		select {
		case resume <- struct{}{}:
		default:
		}
	}
}

func (p *poller) remove(conn net.Conn) error {
	p.mu.Lock()
	if resume, ok := p.socks[conn]; ok {
		close(resume)
		delete(p.socks, conn)
	}
	p.mu.Unlock()
	return nil
}

func (p *poller) wait() ([]net.Conn, error) {
	select {
	case c := <-p.ready:
		out := []net.Conn{c}
		for {
			select {
			case c := <-p.ready:
				out = append(out, c)
			default:
				return out, nil
			}
		}
	case <-p.done:
		return nil, net.ErrClosed
	}
}

func (p *poller) close() error {
	close(p.done)
	return nil
}

func socketFD(net.Conn) int { return -1 }
