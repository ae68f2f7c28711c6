package disknode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"sync"

	"github.com/dreamware/strata/internal/cluster"
	"github.com/dreamware/strata/internal/wire"
)

// maxBlockSize bounds a single block payload announced by a peer. Matches
// the largest permitted striping unit.
const maxBlockSize = 1 << 20

// Server is the disk's command server.
type Server struct {
	node *Node

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// NewServer creates a command server for the node.
func NewServer(node *Node) *Server {
	return &Server{node: node}
}

// Node returns the node this server executes against.
func (s *Server) Node() *Node {
	return s.node
}

// ListenAndServe listens on addr and serves until Close.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("disk[%s]: listen %s: %w", s.node.Name, addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln, one goroutine per connection, until the
// listener closes.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("disk[%s]: accept: %w", s.node.Name, err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Addr returns the listener's address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops accepting and waits for in-flight handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	return err
}

// handleConn serves framed exchanges until the peer hangs up.
//
// A store-block request's raw payload is always drained off the wire before
// dispatch, even when the node is Failed and will reject the command,
// otherwise the stream would desynchronize.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	rd := bufio.NewReader(conn)

	for {
		payload, err := wire.ReadFrame(rd)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("disk[%s]: %s: %v", s.node.Name, conn.RemoteAddr(), err)
			}
			return
		}
		cmd, args := wire.DecodeRequest(payload)

		argc, ok := wire.DiskArgc(cmd)
		if !ok || len(args) != argc {
			log.Printf("disk[%s]: rejected %q with %d args", s.node.Name, cmd, len(args))
			if err := wire.WriteFrame(conn, wire.Failure()); err != nil {
				return
			}
			continue
		}

		var raw []byte
		if cmd == wire.CmdStoreBlock {
			size, err := strconv.Atoi(args[4])
			if err != nil || size < 0 || size > maxBlockSize {
				log.Printf("disk[%s]: store-block with bad size %q", s.node.Name, args[4])
				// Cannot trust the stream past a bogus size.
				return
			}
			if raw, err = wire.ReadRaw(rd, size); err != nil {
				log.Printf("disk[%s]: %s: %v", s.node.Name, conn.RemoteAddr(), err)
				return
			}
		}

		res := s.node.Exec(cmd, args, raw)
		if err := wire.WriteFrame(conn, res.frame); err != nil {
			log.Printf("disk[%s]: %s: %v", s.node.Name, conn.RemoteAddr(), err)
			return
		}
		if res.raw != nil {
			if err := wire.WriteRaw(conn, res.raw); err != nil {
				log.Printf("disk[%s]: %s: %v", s.node.Name, conn.RemoteAddr(), err)
				return
			}
		}
	}
}

// Register announces the disk to the coordinator. The management and
// command ports are what peers will dial.
func Register(ctx context.Context, coordAddr string, disk cluster.DiskInfo, mgmtPort int) error {
	resp, err := cluster.Call(ctx, coordAddr, wire.CmdRegisterDisk,
		disk.Name, disk.Addr, strconv.Itoa(mgmtPort), strconv.Itoa(disk.CmdPort))
	if err != nil {
		return fmt.Errorf("disk[%s]: register: %w", disk.Name, err)
	}
	if !wire.IsSuccess(resp) {
		return fmt.Errorf("disk[%s]: register rejected", disk.Name)
	}
	return nil
}

// Deregister withdraws the disk from the coordinator.
func Deregister(ctx context.Context, coordAddr, name string) error {
	resp, err := cluster.Call(ctx, coordAddr, wire.CmdDeregisterDisk, name)
	if err != nil {
		return fmt.Errorf("disk[%s]: deregister: %w", name, err)
	}
	if !wire.IsSuccess(resp) {
		return fmt.Errorf("disk[%s]: deregister rejected", name)
	}
	return nil
}
