package apcupsd

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
)

// FakeServer is a minimal NIS listening on loopback. Every connection gets
// one request read and Response written back in small chunks, then closed.
type FakeServer struct {
	Response []byte

	ln net.Listener
	wg sync.WaitGroup

	mu       sync.Mutex
	requests []string
}

// NewFakeServer starts a FakeServer on a random loopback port.
func NewFakeServer(response []byte) (*FakeServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &FakeServer{Response: response, ln: ln}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Addr returns the "host:port" the server listens on.
func (s *FakeServer) Addr() string { return s.ln.Addr().String() }

// Requests returns the commands received so far.
func (s *FakeServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Close stops the listener and waits for open connections to finish.
func (s *FakeServer) Close() error {
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *FakeServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close() //nolint:errcheck
			s.handle(conn)
		}()
	}
}

func (s *FakeServer) handle(conn net.Conn) {
	var hdr [2]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return
	}
	cmd := make([]byte, binary.BigEndian.Uint16(hdr[:]))
	if _, err := io.ReadFull(conn, cmd); err != nil {
		return
	}
	s.mu.Lock()
	s.requests = append(s.requests, string(cmd))
	s.mu.Unlock()

	const chunk = 16
	for rest := s.Response; len(rest) > 0; {
		n := min(chunk, len(rest))
		if _, err := conn.Write(rest[:n]); err != nil {
			return
		}
		rest = rest[n:]
	}
}
