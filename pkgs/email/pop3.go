package email

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	gomessage "github.com/emersion/go-message"
)

// POP3Client opens authenticated mailbox sessions over TLS.
type POP3Client struct {
	config POP3Config
}

// POP3Config holds POP3 connection settings.
type POP3Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// SSL connects over implicit TLS (POP3S). StartTLS connects in
	// plaintext and upgrades via STLS before authenticating. One of the
	// two must be set; plaintext sessions are refused.
	SSL      bool
	StartTLS bool

	// TLSConfig overrides the client TLS configuration. Mainly for tests.
	TLSConfig *tls.Config

	// Timeout bounds the dial. Zero means 10 seconds.
	Timeout time.Duration
}

// NewPOP3Client creates a new POP3 client.
func NewPOP3Client(config POP3Config) *POP3Client {
	return &POP3Client{config: config}
}

// MailboxSession is one authenticated POP3 connection together with the ID
// space the server assigned to it at open time: message numbers are
// 1-based, contiguous, and valid only until the session closes. Closing the
// session commits any deletion marks issued during it.
type MailboxSession struct {
	conn  *pop3Conn
	count int
}

// OpenSession dials, authenticates, and establishes the session ID space.
// Connection, TLS and authentication failures abort the whole call.
func (c *POP3Client) OpenSession() (*MailboxSession, error) {
	conn, err := c.connect()
	if err != nil {
		return nil, err
	}

	count, _, err := conn.stat()
	if err != nil {
		conn.quit()
		return nil, fmt.Errorf("POP3 STAT failed: %w", err)
	}

	return &MailboxSession{conn: conn, count: count}, nil
}

// Count returns the number of messages visible when the session opened.
func (s *MailboxSession) Count() int {
	return s.count
}

// ListIDs returns the session-local message numbers in server LIST order.
func (s *MailboxSession) ListIDs() ([]int, error) {
	entries, err := s.conn.list()
	if err != nil {
		return nil, fmt.Errorf("POP3 LIST failed: %w", err)
	}
	ids := make([]int, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids, nil
}

// TopHeaders fetches only the header section of a message, so the cost of
// enumerating a mailbox stays proportional to its size rather than to the
// total message content. Servers without TOP fall back to a full RETR.
func (s *MailboxSession) TopHeaders(id int) (*Message, error) {
	entity, err := s.conn.top(id, 0)
	if err != nil {
		entity, err = s.conn.retr(id)
		if err != nil {
			return nil, fmt.Errorf("POP3 TOP %d failed: %w", id, err)
		}
	}
	return messageFromEntity(id, entity), nil
}

// Retrieve downloads and parses the full message, including its body.
func (s *MailboxSession) Retrieve(id int) (*Message, error) {
	entity, err := s.conn.retr(id)
	if err != nil {
		return nil, fmt.Errorf("POP3 RETR %d failed: %w", id, err)
	}
	msg := messageFromEntity(id, entity)
	parseEntityBody(msg, entity)
	return msg, nil
}

// MarkDeleted marks a message for deletion. The server commits the mark
// only when the session closes.
func (s *MailboxSession) MarkDeleted(id int) error {
	if err := s.conn.dele(id); err != nil {
		return fmt.Errorf("POP3 DELE %d failed: %w", id, err)
	}
	return nil
}

// Close sends QUIT, committing pending deletion marks, and releases the
// connection. It must run on every exit path; all session-local IDs are
// invalid afterwards.
func (s *MailboxSession) Close() error {
	return s.conn.quit()
}

// connect dials and authenticates to the POP3 server.
func (c *POP3Client) connect() (*pop3Conn, error) {
	if !c.config.SSL && !c.config.StartTLS {
		return nil, errors.New("POP3 requires SSL or StartTLS; plaintext sessions are not supported")
	}

	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))

	timeout := c.config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}

	tlsCfg := c.config.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{ServerName: c.config.Host}
	}

	var netConn net.Conn
	var err error
	if c.config.SSL {
		netConn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	} else {
		netConn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("POP3 connection to %s failed: %w", addr, err)
	}

	conn := newPOP3Conn(netConn)

	// Read the server greeting
	if _, err := conn.readOne(); err != nil {
		netConn.Close()
		return nil, fmt.Errorf("POP3 greeting failed: %w", err)
	}

	if c.config.StartTLS {
		if err := conn.stls(tlsCfg); err != nil {
			conn.conn.Close()
			return nil, fmt.Errorf("POP3 STLS failed: %w", err)
		}
	}

	if err := conn.auth(c.config.Username, c.config.Password); err != nil {
		conn.conn.Close()
		return nil, fmt.Errorf("POP3 authentication failed: %w", err)
	}

	return conn, nil
}

// ---------- low-level POP3 protocol ----------

// pop3ListEntry is one LIST response line: message number and size.
type pop3ListEntry struct {
	ID   int
	Size int
}

var (
	pop3LineBreak   = []byte("\r\n")
	pop3RespOK      = []byte("+OK")
	pop3RespOKInfo  = []byte("+OK ")
	pop3RespErr     = []byte("-ERR")
	pop3RespErrInfo = []byte("-ERR ")
)

// pop3Conn is a raw POP3 connection.
type pop3Conn struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

func newPOP3Conn(netConn net.Conn) *pop3Conn {
	return &pop3Conn{
		conn: netConn,
		r:    bufio.NewReader(netConn),
		w:    bufio.NewWriter(netConn),
	}
}

// send writes a POP3 command line.
func (c *pop3Conn) send(s string) error {
	if _, err := c.w.WriteString(s + "\r\n"); err != nil {
		return err
	}
	return c.w.Flush()
}

// cmd sends a command and reads the response.
// If isMulti is true, it reads until the "." terminator.
func (c *pop3Conn) cmd(cmd string, isMulti bool, args ...interface{}) (*bytes.Buffer, error) {
	cmdLine := cmd
	if len(args) > 0 {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = fmt.Sprintf("%v", a)
		}
		cmdLine = cmd + " " + strings.Join(parts, " ")
	}

	if err := c.send(cmdLine); err != nil {
		return nil, err
	}

	b, err := c.readOne()
	if err != nil {
		return nil, err
	}

	if !isMulti {
		return bytes.NewBuffer(b), nil
	}

	return c.readAll()
}

// readOne reads a single-line response and checks +OK/-ERR.
func (c *pop3Conn) readOne() ([]byte, error) {
	b, _, err := c.r.ReadLine()
	if err != nil {
		return nil, err
	}
	return parsePOP3Resp(b)
}

// readAll reads lines until the POP3 multiline terminator ".".
func (c *pop3Conn) readAll() (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	for {
		b, _, err := c.r.ReadLine()
		if err != nil {
			return nil, err
		}
		if bytes.Equal(b, []byte(".")) {
			break
		}
		// Byte-stuff: lines starting with "." have the leading dot removed
		if bytes.HasPrefix(b, []byte("..")) {
			b = b[1:]
		}
		buf.Write(b)
		buf.Write(pop3LineBreak)
	}
	return buf, nil
}

// stls upgrades the plaintext connection to TLS.
func (c *pop3Conn) stls(tlsCfg *tls.Config) error {
	if _, err := c.cmd("STLS", false); err != nil {
		return err
	}
	tlsConn := tls.Client(c.conn, tlsCfg)
	if err := tlsConn.Handshake(); err != nil {
		return err
	}
	c.conn = tlsConn
	c.r = bufio.NewReader(tlsConn)
	c.w = bufio.NewWriter(tlsConn)
	return nil
}

// auth authenticates with USER/PASS.
func (c *pop3Conn) auth(user, password string) error {
	if _, err := c.cmd("USER", false, user); err != nil {
		return err
	}
	if _, err := c.cmd("PASS", false, password); err != nil {
		return err
	}
	// NOOP to confirm auth succeeded
	_, err := c.cmd("NOOP", false)
	return err
}

// stat returns message count and total size.
func (c *pop3Conn) stat() (count, size int, err error) {
	b, err := c.cmd("STAT", false)
	if err != nil {
		return 0, 0, err
	}
	f := bytes.Fields(b.Bytes())
	if len(f) < 2 {
		return 0, 0, nil
	}
	count, _ = strconv.Atoi(string(f[0]))
	size, _ = strconv.Atoi(string(f[1]))
	return count, size, nil
}

// list returns all message numbers and sizes in server order.
func (c *pop3Conn) list() ([]pop3ListEntry, error) {
	buf, err := c.cmd("LIST", true)
	if err != nil {
		return nil, err
	}

	var out []pop3ListEntry
	for _, l := range bytes.Split(buf.Bytes(), pop3LineBreak) {
		f := bytes.Fields(l)
		if len(f) < 2 {
			continue
		}
		id, _ := strconv.Atoi(string(f[0]))
		sz, _ := strconv.Atoi(string(f[1]))
		out = append(out, pop3ListEntry{ID: id, Size: sz})
	}
	return out, nil
}

// retr downloads and parses a message.
func (c *pop3Conn) retr(msgID int) (*gomessage.Entity, error) {
	b, err := c.cmd("RETR", true, msgID)
	if err != nil {
		return nil, err
	}
	m, err := gomessage.Read(b)
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil, err
	}
	return m, nil
}

// top retrieves headers + numLines body lines.
func (c *pop3Conn) top(msgID, numLines int) (*gomessage.Entity, error) {
	b, err := c.cmd("TOP", true, msgID, numLines)
	if err != nil {
		return nil, err
	}
	m, err := gomessage.Read(b)
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil, err
	}
	return m, nil
}

// dele marks a message for deletion.
func (c *pop3Conn) dele(msgID int) error {
	_, err := c.cmd("DELE", false, msgID)
	return err
}

// quit sends QUIT and closes the connection.
func (c *pop3Conn) quit() error {
	c.cmd("QUIT", false) //nolint: ignore QUIT errors
	return c.conn.Close()
}

// ---------- response parsing ----------

func parsePOP3Resp(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if bytes.Equal(b, pop3RespOK) {
		return nil, nil
	}
	if bytes.HasPrefix(b, pop3RespOKInfo) {
		return bytes.TrimPrefix(b, pop3RespOKInfo), nil
	}
	if bytes.Equal(b, pop3RespErr) {
		return nil, errors.New("POP3: unknown error")
	}
	if bytes.HasPrefix(b, pop3RespErrInfo) {
		return nil, fmt.Errorf("POP3: %s", bytes.TrimPrefix(b, pop3RespErrInfo))
	}
	return nil, fmt.Errorf("POP3: unexpected response: %s", string(b))
}
