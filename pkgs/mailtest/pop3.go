package mailtest

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
)

// POP3Options configures a mock POP3 server.
type POP3Options struct {
	// Messages are raw RFC 5322 messages, in mailbox order.
	Messages []string

	// UseTLS listens with implicit TLS (POP3S).
	UseTLS bool
	// SupportSTLS advertises and handles the STLS upgrade.
	SupportSTLS bool
	// RejectAuth fails every PASS command.
	RejectAuth bool
	// RejectTOP answers -ERR to TOP so clients exercise the RETR fallback.
	RejectTOP bool
}

// POP3Server is an in-process POP3 server. Deletions marked during a
// session are committed on QUIT and survive across connections; each new
// connection sees the remaining messages renumbered from 1, like a real
// maildrop.
type POP3Server struct {
	opts   POP3Options
	ln     net.Listener
	tlsCfg *tls.Config

	mu       sync.Mutex
	messages []string
}

// NewPOP3Server starts a mock POP3 server and returns it. The listener is
// closed via t.Cleanup.
func NewPOP3Server(t *testing.T, opts POP3Options) *POP3Server {
	t.Helper()

	s := &POP3Server{
		opts:     opts,
		messages: append([]string(nil), opts.Messages...),
	}

	if opts.UseTLS || opts.SupportSTLS {
		s.tlsCfg = NewServerTLSConfig(t)
	}

	var err error
	if opts.UseTLS {
		s.ln, err = tls.Listen("tcp", "127.0.0.1:0", s.tlsCfg)
	} else {
		s.ln, err = net.Listen("tcp", "127.0.0.1:0")
	}
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.ln.Close() })

	go func() {
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				return
			}
			go s.handleConn(conn)
		}
	}()

	return s
}

// Addr returns the server's listen address.
func (s *POP3Server) Addr() string {
	return s.ln.Addr().String()
}

// Remaining returns the messages still in the maildrop.
func (s *POP3Server) Remaining() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func (s *POP3Server) handleConn(conn net.Conn) {
	defer conn.Close()

	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	writeLine := func(format string, args ...interface{}) {
		fmt.Fprintf(rw, format+"\r\n", args...)
		rw.Flush()
	}

	// Snapshot the maildrop: this session's IDs are 1..len(snapshot).
	snapshot := s.Remaining()
	pending := map[int]bool{}
	authed := false

	writeLine("+OK POP3 server ready")

	for {
		line, err := rw.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(strings.TrimRight(line, "\r\n"))
		if len(fields) == 0 {
			continue
		}
		cmd := strings.ToUpper(fields[0])

		argID := func(n int) int {
			id := 0
			if len(fields) > n {
				fmt.Sscanf(fields[n], "%d", &id)
			}
			return id
		}
		valid := func(id int) bool {
			return id >= 1 && id <= len(snapshot) && !pending[id]
		}

		switch cmd {
		case "CAPA":
			writeLine("+OK")
			if s.opts.SupportSTLS {
				writeLine("STLS")
			}
			if !s.opts.RejectTOP {
				writeLine("TOP")
			}
			writeLine(".")

		case "STLS":
			if !s.opts.SupportSTLS || s.tlsCfg == nil {
				writeLine("-ERR STLS not supported")
				continue
			}
			writeLine("+OK Begin TLS")
			tlsConn := tls.Server(conn, s.tlsCfg)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			rw = bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

		case "USER":
			writeLine("+OK")

		case "PASS":
			if s.opts.RejectAuth {
				writeLine("-ERR auth failed")
				continue
			}
			authed = true
			writeLine("+OK Logged in")

		case "NOOP":
			if !authed {
				writeLine("-ERR not authenticated")
				continue
			}
			writeLine("+OK")

		case "STAT":
			if !authed {
				writeLine("-ERR not authenticated")
				continue
			}
			total, totalSize := 0, 0
			for id, m := range snapshot {
				if !pending[id+1] {
					total++
					totalSize += len(m)
				}
			}
			writeLine("+OK %d %d", total, totalSize)

		case "LIST":
			if !authed {
				writeLine("-ERR not authenticated")
				continue
			}
			if len(fields) > 1 {
				id := argID(1)
				if !valid(id) {
					writeLine("-ERR no such message")
					continue
				}
				writeLine("+OK %d %d", id, len(snapshot[id-1]))
			} else {
				writeLine("+OK")
				for id, m := range snapshot {
					if !pending[id+1] {
						writeLine("%d %d", id+1, len(m))
					}
				}
				writeLine(".")
			}

		case "RETR":
			if !authed {
				writeLine("-ERR not authenticated")
				continue
			}
			id := argID(1)
			if !valid(id) {
				writeLine("-ERR no such message")
				continue
			}
			writeLine("+OK")
			for _, dataLine := range strings.Split(snapshot[id-1], "\r\n") {
				// Byte-stuff lines starting with "."
				if strings.HasPrefix(dataLine, ".") {
					writeLine("%s", "."+dataLine)
				} else {
					writeLine("%s", dataLine)
				}
			}
			writeLine(".")

		case "TOP":
			if !authed {
				writeLine("-ERR not authenticated")
				continue
			}
			if s.opts.RejectTOP {
				writeLine("-ERR TOP not supported")
				continue
			}
			id, numLines := argID(1), argID(2)
			if !valid(id) {
				writeLine("-ERR no such message")
				continue
			}
			writeLine("+OK")
			parts := strings.SplitN(snapshot[id-1], "\r\n\r\n", 2)
			for _, hl := range strings.Split(parts[0], "\r\n") {
				writeLine("%s", hl)
			}
			writeLine("") // blank line between headers and body
			if len(parts) > 1 && numLines > 0 {
				bodyLines := strings.Split(parts[1], "\r\n")
				for i := 0; i < numLines && i < len(bodyLines); i++ {
					writeLine("%s", bodyLines[i])
				}
			}
			writeLine(".")

		case "DELE":
			if !authed {
				writeLine("-ERR not authenticated")
				continue
			}
			id := argID(1)
			if !valid(id) {
				writeLine("-ERR no such message")
				continue
			}
			pending[id] = true
			writeLine("+OK marked for deletion")

		case "QUIT":
			s.commit(snapshot, pending)
			writeLine("+OK Bye")
			return

		default:
			writeLine("-ERR unknown command")
		}
	}
}

// commit removes messages marked during the session from the maildrop.
func (s *POP3Server) commit(snapshot []string, pending map[int]bool) {
	if len(pending) == 0 {
		return
	}
	remaining := make([]string, 0, len(snapshot))
	for id, m := range snapshot {
		if !pending[id+1] {
			remaining = append(remaining, m)
		}
	}
	s.mu.Lock()
	s.messages = remaining
	s.mu.Unlock()
}
