package managesieve

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

// literalInlineThreshold is the octet count above which an outbound string
// is sent as a literal instead of a quoted string (spec section 4.5).
const literalInlineThreshold = 1024

// transport owns the raw connection and the bufio framing over it. It is
// replaced wholesale on STARTTLS, the same way the teacher's
// IngestConnection rebuilds its EntryWriter rather than mutating the
// net.Conn in place.
type transport struct {
	mtx     sync.RWMutex
	conn    net.Conn
	rd      *bufio.Reader
	wr      *bufio.Writer
	timeout time.Duration
}

// dial opens a TCP connection to addr, routing through a SOCKS5 proxy when
// proxyAddr is non-empty.
func dial(ctx context.Context, addr, proxyAddr string) (net.Conn, error) {
	if proxyAddr != "" {
		dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, &TransportError{Op: "socks5 setup", Err: err}
		}
		type contextDialer interface {
			DialContext(ctx context.Context, network, address string) (net.Conn, error)
		}
		if cd, ok := dialer.(contextDialer); ok {
			conn, err := cd.DialContext(ctx, "tcp", addr)
			if err != nil {
				return nil, &TransportError{Op: "dial", Err: err}
			}
			return conn, nil
		}
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, &TransportError{Op: "dial", Err: err}
		}
		return conn, nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return conn, nil
}

func newTransport(conn net.Conn, timeout time.Duration) *transport {
	return &transport{
		conn:    conn,
		rd:      bufio.NewReader(conn),
		wr:      bufio.NewWriter(conn),
		timeout: timeout,
	}
}

// upgrade replaces the raw connection with a TLS-wrapped one, discarding any
// buffered plaintext (there should be none since STARTTLS forbids pipelining
// past the tagged OK).
func (t *transport) upgrade(cfg *tls.Config) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if err := t.setDeadlineLocked(); err != nil {
		return err
	}
	tlsConn := tls.Client(t.conn, cfg)
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		return &TransportError{Op: "starttls handshake", Err: err}
	}
	t.conn = tlsConn
	t.rd = bufio.NewReader(tlsConn)
	t.wr = bufio.NewWriter(tlsConn)
	return nil
}

func (t *transport) setDeadlineLocked() error {
	if t.timeout <= 0 {
		return nil
	}
	if err := t.conn.SetDeadline(time.Now().Add(t.timeout)); err != nil {
		return &TransportError{Op: "set deadline", Err: err}
	}
	return nil
}

// readLine reads one CRLF-terminated line, stripping the terminator.
func (t *transport) readLine() (string, error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	if err := t.setDeadlineLocked(); err != nil {
		return "", err
	}
	line, err := t.rd.ReadString('\n')
	if err != nil {
		if isTimeout(err) {
			return "", &TimeoutError{Op: "read line"}
		}
		return "", &TransportError{Op: "read line", Err: err}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readLiteral reads exactly n octets immediately following a `{n}`/`{n+}`
// line, per spec section 4.5.
func (t *transport) readLiteral(n int) ([]byte, error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	if err := t.setDeadlineLocked(); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.rd, buf); err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Op: "read literal"}
		}
		return nil, &TransportError{Op: "read literal", Err: err}
	}
	return buf, nil
}

// writeLine writes raw bytes followed by CRLF and flushes.
func (t *transport) writeLine(line string) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if err := t.setDeadlineLocked(); err != nil {
		return err
	}
	if _, err := t.wr.WriteString(line); err != nil {
		return &TransportError{Op: "write line", Err: err}
	}
	if _, err := t.wr.WriteString("\r\n"); err != nil {
		return &TransportError{Op: "write line", Err: err}
	}
	if err := t.wr.Flush(); err != nil {
		if isTimeout(err) {
			return &TimeoutError{Op: "write line"}
		}
		return &TransportError{Op: "write line", Err: err}
	}
	return nil
}

// writeRaw writes raw bytes with no added terminator and flushes. Outbound
// literals do not go through it: quoteString puts the literal payload inline
// in the line that writeLine sends.
func (t *transport) writeRaw(b []byte) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if err := t.setDeadlineLocked(); err != nil {
		return err
	}
	if _, err := t.wr.Write(b); err != nil {
		return &TransportError{Op: "write literal", Err: err}
	}
	if err := t.wr.Flush(); err != nil {
		return &TransportError{Op: "write literal", Err: err}
	}
	return nil
}

func (t *transport) close() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.conn.Close()
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// quoteString renders s as a ManageSieve string argument: a literal when s
// contains CR/LF/NUL or exceeds literalInlineThreshold octets, a quoted
// string otherwise (spec section 4.5).
func quoteString(s string) string {
	if needsLiteral(s) {
		return fmt.Sprintf("{%d+}\r\n%s", len(s), s)
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('"')
	return b.String()
}

func needsLiteral(s string) bool {
	if len(s) > literalInlineThreshold {
		return true
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\r', '\n', 0:
			return true
		}
	}
	return false
}

// parseLiteralHeader reports whether line ends with a `{n}` or `{n+}`
// literal announcement, returning the octet count.
func parseLiteralHeader(line string) (n int, synchronizing bool, ok bool) {
	if !strings.HasSuffix(line, "}") {
		return 0, false, false
	}
	open := strings.LastIndexByte(line, '{')
	if open < 0 {
		return 0, false, false
	}
	body := line[open+1 : len(line)-1]
	synchronizing = strings.HasSuffix(body, "+")
	if synchronizing {
		body = body[:len(body)-1]
	}
	num, err := strconv.Atoi(body)
	if err != nil || num < 0 {
		return 0, false, false
	}
	return num, synchronizing, true
}
