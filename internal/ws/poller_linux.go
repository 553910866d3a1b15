//go:build linux

package ws

import (
	"errors"
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// poller reports sockets with pending input using epoll, so idle players
// cost no goroutine.
type poller struct {
	fd     int
	mu     sync.RWMutex
	socks  map[int32]net.Conn
	events []unix.EpollEvent
}

func newPoller() (*poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &poller{fd: fd, socks: make(map[int32]net.Conn), events: make([]unix.EpollEvent, 256)}, nil
}

func (p *poller) add(conn net.Conn) error {
	fd := socketFD(conn)
	if fd < 0 {
		return errors.New("ws: connection has no socket")
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLHUP | unix.EPOLLRDHUP, Fd: int32(fd)}
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	p.mu.Lock()
	p.socks[int32(fd)] = conn
	p.mu.Unlock()
	return nil
}

func (p *poller) remove(conn net.Conn) error {
	fd := socketFD(conn)
	p.mu.Lock()
	delete(p.socks, int32(fd))
	p.mu.Unlock()
	if fd < 0 {
		return nil
	}
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wait blocks until at least one socket is readable. Sockets removed while
// the kernel call was in flight are skipped.
func (p *poller) wait() ([]net.Conn, error) {
	n, err := unix.EpollWait(p.fd, p.events, -1)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	ready := make([]net.Conn, 0, n)
	for _, ev := range p.events[:n] {
		if c, ok := p.socks[ev.Fd]; ok {
			ready = append(ready, c)
		}
	}
	return ready, nil
}

// drained is a no-op: epoll reports the socket again when more input
// arrives.
func (p *poller) drained(net.Conn) {}

func (p *poller) close() error {
	p.mu.Lock()
	p.socks = map[int32]net.Conn{}
	p.mu.Unlock()
	return unix.Close(p.fd)
}

// socketFD reads the descriptor through SyscallConn; File() would dup it.
func socketFD(conn net.Conn) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}
	fd := -1
	_ = raw.Control(func(s uintptr) { fd = int(s) })
	return fd
}
