// Package transport implements the connection layer between a process
// and its agent: a request/reply message socket, an outbound Channel
// that multiplexes calls over one connection, and an inbound Listener
// that dispatches received frames.
//
// The Socket interface is the only seam that depends on the underlying
// network primitive. Everything above it deals in whole messages; the
// TCP implementation below delimits them with a 4-byte length prefix
// (frames themselves carry no length field).
package transport

import (
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// DefaultMaxMessageSize caps a single message at 4 MiB unless
// configured otherwise.
const DefaultMaxMessageSize = 4 * 1024 * 1024

// Socket exchanges whole messages with a single peer. Send and Recv
// are individually safe for one concurrent caller each; callers that
// share a socket serialize writes themselves.
type Socket interface {
	Send(msg []byte) error
	Recv() ([]byte, error)
	Close() error
	RemoteAddr() string
}

// SocketListener accepts inbound sockets on a passive endpoint.
type SocketListener interface {
	Accept() (Socket, error)
	Close() error
	Addr() string
}

// tcpSocket frames messages over a stream connection with a 4-byte
// big-endian length prefix, read back with io.ReadFull so partial
// reads can never split a message.
type tcpSocket struct {
	conn    net.Conn
	maxSize uint32
	rmu     sync.Mutex
	wmu     sync.Mutex
}

// Dial opens a message socket to addr. A nil tlsConfig means
// plaintext; maxSize <= 0 selects DefaultMaxMessageSize.
func Dial(addr string, tlsConfig *tls.Config, maxSize int, timeout time.Duration) (Socket, error) {
	d := net.Dialer{Timeout: timeout}
	var (
		conn net.Conn
		err  error
	)
	if tlsConfig != nil {
		conn, err = tls.DialWithDialer(&d, "tcp", addr, tlsConfig)
	} else {
		conn, err = d.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return newTCPSocket(conn, maxSize), nil
}

// Listen binds a passive message endpoint on addr.
func Listen(addr string, tlsConfig *tls.Config, maxSize int) (SocketListener, error) {
	var (
		ln  net.Listener
		err error
	)
	if tlsConfig != nil {
		ln, err = tls.Listen("tcp", addr, tlsConfig)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &tcpListener{ln: ln, maxSize: maxSize}, nil
}

func newTCPSocket(conn net.Conn, maxSize int) *tcpSocket {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &tcpSocket{conn: conn, maxSize: uint32(maxSize)}
}

// Send writes the length prefix and the message under one lock so
// concurrent senders cannot interleave bytes on the stream.
func (s *tcpSocket) Send(msg []byte) error {
	if uint32(len(msg)) > s.maxSize {
		return fmt.Errorf("message size %d exceeds limit %d", len(msg), s.maxSize)
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(msg)))
	if _, err := s.conn.Write(prefix[:]); err != nil {
		return err
	}
	_, err := s.conn.Write(msg)
	return err
}

// Recv reads exactly one message. Reads must be sequential (a stream
// has no frame boundaries of its own), so a single lock guards them.
func (s *tcpSocket) Recv() ([]byte, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()

	var prefix [4]byte
	if _, err := io.ReadFull(s.conn, prefix[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size > s.maxSize {
		return nil, fmt.Errorf("message size %d exceeds limit %d", size, s.maxSize)
	}
	msg := make([]byte, size)
	if _, err := io.ReadFull(s.conn, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *tcpSocket) Close() error {
	return s.conn.Close()
}

func (s *tcpSocket) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

type tcpListener struct {
	ln      net.Listener
	maxSize int
}

func (l *tcpListener) Accept() (Socket, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return newTCPSocket(conn, l.maxSize), nil
}

func (l *tcpListener) Close() error {
	return l.ln.Close()
}

func (l *tcpListener) Addr() string {
	return l.ln.Addr().String()
}
