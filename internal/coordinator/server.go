package coordinator

import (
	"bufio"
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

// Server accepts framed connections and dispatches the coordinator command
// catalog against a Directory. One goroutine serves each accepted
// connection; the Directory's own lock serializes the state changes.
type Server struct {
	dir *Directory

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// NewServer creates a command server over the given directory.
func NewServer(dir *Directory) *Server {
	return &Server{dir: dir}
}

// Directory returns the directory the server dispatches against.
func (s *Server) Directory() *Directory {
	return s.dir
}

// ListenAndServe listens on addr and serves until Close.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("coordinator: listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until the listener closes.
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
			return fmt.Errorf("coordinator: accept: %w", err)
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

// Close stops accepting and waits for in-flight connections to finish their
// current exchange.
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

// handleConn serves framed request/response exchanges until the peer hangs
// up. Every failure path answers with an explicit failure frame; nothing is
// silently swallowed.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	rd := bufio.NewReader(conn)

	for {
		payload, err := wire.ReadFrame(rd)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("coordinator: %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
		cmd, args := wire.DecodeRequest(payload)
		resp := s.dispatch(cmd, args)
		if err := wire.WriteFrame(conn, resp); err != nil {
			log.Printf("coordinator: %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

// dispatch routes one decoded request. Commands outside the catalog and
// wrong argument counts fail before touching the directory.
func (s *Server) dispatch(cmd string, args []string) []byte {
	argc, ok := wire.CoordinatorArgc(cmd)
	if !ok || len(args) != argc {
		log.Printf("coordinator: rejected %q with %d args", cmd, len(args))
		return wire.Failure()
	}

	switch cmd {
	case wire.CmdRegisterUser:
		return s.register(args, s.dir.RegisterUser)
	case wire.CmdRegisterDisk:
		return s.register(args, s.dir.RegisterDisk)
	case wire.CmdConfigureDSS:
		n, err1 := strconv.Atoi(args[1])
		unit, err2 := strconv.Atoi(args[2])
		if err1 != nil || err2 != nil {
			return wire.Failure()
		}
		return s.status(s.dir.ConfigureArray(args[0], n, unit))
	case wire.CmdList:
		listings, err := s.dir.ListFiles()
		if err != nil {
			log.Printf("coordinator: %v", err)
			return wire.Failure()
		}
		return []byte(wire.StatusSuccess + "\n" + cluster.FormatListing(listings))
	case wire.CmdCopy:
		size, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || size < 0 {
			return wire.Failure()
		}
		t, err := s.dir.CopyInitiate(args[0], size, args[2])
		if err != nil {
			log.Printf("coordinator: %v", err)
			return wire.Failure()
		}
		fields := []string{t.Array, strconv.FormatInt(t.FileSize, 10)}
		return wire.OK(appendTopology(fields, t)...)
	case wire.CmdCopyComplete:
		size, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil || size < 0 {
			return wire.Failure()
		}
		return s.status(s.dir.CopyComplete(args[0], args[1], args[2], size))
	case wire.CmdRead:
		t, err := s.dir.ReadInitiate(args[0], args[1], args[2])
		if err != nil {
			log.Printf("coordinator: %v", err)
			return wire.Failure()
		}
		fields := []string{strconv.FormatInt(t.FileSize, 10)}
		return wire.OK(appendTopology(fields, t)...)
	case wire.CmdReadComplete:
		// Advisory acknowledgment.
		return wire.OK()
	case wire.CmdDiskFailure:
		return s.topologyReply(s.dir.FailInitiate, args[0])
	case wire.CmdRecoveryComplete:
		// Advisory: the disk was never removed from its array, so there is
		// no membership change to apply.
		log.Printf("coordinator: recovery complete for disk %q in array %q", args[1], args[0])
		return wire.OK()
	case wire.CmdDecommissionDSS:
		return s.topologyReply(s.dir.DecommissionInitiate, args[0])
	case wire.CmdDecommissionComplete:
		return s.status(s.dir.DecommissionComplete(args[0]))
	case wire.CmdDeregisterUser:
		return s.status(s.dir.DeregisterUser(args[0]))
	case wire.CmdDeregisterDisk:
		return s.status(s.dir.DeregisterDisk(args[0]))
	}
	return wire.Failure()
}

// register handles the shared register-user/register-disk argument shape:
// name, address, management port, command port.
func (s *Server) register(args []string, fn func(name, addr string, mgmtPort, cmdPort int) error) []byte {
	mgmtPort, err1 := strconv.Atoi(args[2])
	cmdPort, err2 := strconv.Atoi(args[3])
	if err1 != nil || err2 != nil {
		return wire.Failure()
	}
	return s.status(fn(args[0], args[1], mgmtPort, cmdPort))
}

// topologyReply handles the shared disk-failure/decommission-dss reply
// shape: n, striping unit, disk count, disk triples.
func (s *Server) topologyReply(fn func(string) (cluster.Topology, error), array string) []byte {
	t, err := fn(array)
	if err != nil {
		log.Printf("coordinator: %v", err)
		return wire.Failure()
	}
	return wire.OK(appendTopology(nil, t)...)
}

// appendTopology appends n, striping unit, disk count, and the disk triples
// to a field list.
func appendTopology(fields []string, t cluster.Topology) []string {
	fields = append(fields,
		strconv.Itoa(t.N),
		strconv.Itoa(t.StripingUnit),
		strconv.Itoa(len(t.Disks)),
	)
	return cluster.AppendDiskFields(fields, t.Disks)
}

// status folds a directory result into a bare success or failure frame.
func (s *Server) status(err error) []byte {
	if err != nil {
		log.Printf("coordinator: %v", err)
		return wire.Failure()
	}
	return wire.OK()
}
