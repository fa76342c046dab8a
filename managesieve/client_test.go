package managesieve

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sieveforge/sievekit/managesieve/sasl"
)

// fakeServer is a minimal scripted ManageSieve server driven over an
// in-memory net.Pipe, the same way RFC 5804's request/response shape is
// exercised without a real network.
type fakeServer struct {
	conn net.Conn
	rd   *bufio.Reader
}

func newFakeServer(conn net.Conn) *fakeServer {
	return &fakeServer{conn: conn, rd: bufio.NewReader(conn)}
}

func (f *fakeServer) readLine(t *testing.T) string {
	t.Helper()
	line, err := f.rd.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\r\n")
}

func (f *fakeServer) send(t *testing.T, s string) {
	t.Helper()
	_, err := f.conn.Write([]byte(s))
	require.NoError(t, err)
}

func TestConnectParsesGreetingCapabilities(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	fs := newFakeServer(serverConn)

	go func() {
		fs.send(t, "\"IMPLEMENTATION\" \"Example1 ManageSieved v0.1\"\r\n")
		fs.send(t, "\"SASL\" \"PLAIN LOGIN\"\r\n")
		fs.send(t, "\"SIEVE\" \"fileinto reject envelope\"\r\n")
		fs.send(t, "\"STARTTLS\"\r\n")
		fs.send(t, "OK\r\n")
	}()

	c := New(Opts{Timeout: 2 * time.Second})
	c.setState(StateConnecting)
	c.t = newTransport(clientConn, c.opts.Timeout)
	lines, comp, err := readResponse(c.t)
	require.NoError(t, err)
	require.True(t, comp.ok())
	caps := capabilitiesFromLines(lines)
	require.Equal(t, "PLAIN LOGIN", caps["SASL"])
	require.Contains(t, caps, "STARTTLS")
}

func TestAuthenticatePlainWireFormat(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	fs := newFakeServer(serverConn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		line := fs.readLine(t)
		require.Contains(t, line, `AUTHENTICATE "PLAIN"`)
		require.Contains(t, line, "{4+}")
		// "\x00u\x00p" is 4 bytes: the literal payload for creds u/p.
		body := make([]byte, 4)
		_, err := io.ReadFull(fs.rd, body)
		require.NoError(t, err)
		require.Equal(t, "\x00u\x00p", string(body))
		fs.send(t, "OK\r\n")
	}()

	c := New(Opts{Timeout: 2 * time.Second})
	c.t = newTransport(clientConn, c.opts.Timeout)
	c.setState(StateGreeted)
	c.capabilities = map[string]string{}

	mech := sasl.NewPlain(sasl.Credentials{Username: "u", Password: "p"})
	err := c.Authenticate(mech)
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, c.State())
	<-done
}

func TestAuthenticateLoginMultiStepChallenges(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	fs := newFakeServer(serverConn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		line := fs.readLine(t)
		require.Equal(t, `AUTHENTICATE "LOGIN"`, line)

		// First challenge: server asks for the username.
		fs.send(t, "\"Username:\"\r\n")
		require.Equal(t, `"u"`, fs.readLine(t))

		// Second challenge: server asks for the password.
		fs.send(t, "\"Password:\"\r\n")
		require.Equal(t, `"p"`, fs.readLine(t))

		fs.send(t, "OK\r\n")
	}()

	c := New(Opts{Timeout: 2 * time.Second})
	c.t = newTransport(clientConn, c.opts.Timeout)
	c.setState(StateGreeted)
	c.capabilities = map[string]string{}

	mech := sasl.NewLogin(sasl.Credentials{Username: "u", Password: "p"})
	err := c.Authenticate(mech)
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, c.State())
	<-done
}

func TestAuthenticateRejectedBeforeAnyChallenge(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	fs := newFakeServer(serverConn)

	go func() {
		require.Contains(t, fs.readLine(t), `AUTHENTICATE "LOGIN"`)
		fs.send(t, "NO \"mechanism not supported\"\r\n")
	}()

	c := New(Opts{Timeout: 2 * time.Second})
	c.t = newTransport(clientConn, c.opts.Timeout)
	c.setState(StateGreeted)
	c.capabilities = map[string]string{}

	mech := sasl.NewLogin(sasl.Credentials{Username: "u", Password: "p"})
	err := c.Authenticate(mech)
	require.Error(t, err)
	_, ok := err.(*AuthError)
	require.True(t, ok)
	require.Equal(t, StateGreeted, c.State())
}

func TestListGetPutScriptRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	fs := newFakeServer(serverConn)

	go func() {
		line := fs.readLine(t) // LISTSCRIPTS
		require.Equal(t, "LISTSCRIPTS", line)
		fs.send(t, "\"summer\"\r\n\"vacation\" ACTIVE\r\nOK\r\n")

		line = fs.readLine(t) // GETSCRIPT "vacation"
		require.Contains(t, line, "GETSCRIPT")
		// 13 octets of script body, then the protocol's own terminating
		// CRLF before resuming line mode, then the tagged completion.
		fs.send(t, "{13}\r\nkeep; stop;\r\n\r\nOK\r\n")
	}()

	c := New(Opts{Timeout: 2 * time.Second})
	c.t = newTransport(clientConn, c.opts.Timeout)
	c.setState(StateAuthenticated)

	scripts, active, err := c.ListScripts()
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	require.Equal(t, "vacation", active)

	body, err := c.GetScript("vacation")
	require.NoError(t, err)
	require.Equal(t, "keep; stop;\r\n", body)
}

func TestSetActiveClearsWithEmptyName(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	fs := newFakeServer(serverConn)

	go func() {
		line := fs.readLine(t)
		require.Equal(t, `SETACTIVE ""`, line)
		fs.send(t, "OK\r\n")
	}()

	c := New(Opts{Timeout: 2 * time.Second})
	c.t = newTransport(clientConn, c.opts.Timeout)
	c.setState(StateAuthenticated)

	err := c.SetActive("")
	require.NoError(t, err)
	require.Equal(t, "", c.activeScript)
}

func TestSimulatedRenameSequence(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	fs := newFakeServer(serverConn)

	go func() {
		require.Contains(t, fs.readLine(t), "GETSCRIPT")
		fs.send(t, "{4}\r\nkeep\r\nOK\r\n")

		require.Equal(t, "LISTSCRIPTS", fs.readLine(t))
		fs.send(t, "\"old\" ACTIVE\r\nOK\r\n")

		require.Contains(t, fs.readLine(t), "PUTSCRIPT")
		fs.send(t, "OK\r\n")

		require.Contains(t, fs.readLine(t), "SETACTIVE")
		fs.send(t, "OK\r\n")

		require.Contains(t, fs.readLine(t), "DELETESCRIPT")
		fs.send(t, "OK\r\n")
	}()

	c := New(Opts{Timeout: 2 * time.Second})
	c.t = newTransport(clientConn, c.opts.Timeout)
	c.setState(StateAuthenticated)
	c.capabilities = map[string]string{} // no RENAME capability

	err := c.RenameScript("old", "new")
	require.NoError(t, err)
}

func TestSimulatedRenameNoRollbackOnPutscriptFailure(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	fs := newFakeServer(serverConn)

	go func() {
		require.Contains(t, fs.readLine(t), "GETSCRIPT")
		fs.send(t, "{4}\r\nkeep\r\nOK\r\n")

		require.Equal(t, "LISTSCRIPTS", fs.readLine(t))
		fs.send(t, "\"old\" ACTIVE\r\nOK\r\n")

		require.Contains(t, fs.readLine(t), "PUTSCRIPT")
		fs.send(t, "NO \"quota exceeded\"\r\n")
		// No further command should arrive: no DELETESCRIPT rollback.
	}()

	c := New(Opts{Timeout: 2 * time.Second})
	c.t = newTransport(clientConn, c.opts.Timeout)
	c.setState(StateAuthenticated)
	c.capabilities = map[string]string{}

	err := c.RenameScript("old", "new")
	require.Error(t, err)
	_, ok := err.(*ServerError)
	require.True(t, ok)
}
