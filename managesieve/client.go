package managesieve

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/sieveforge/sievekit/config"
	"github.com/sieveforge/sievekit/managesieve/sasl"
	"github.com/sieveforge/sievekit/sievelog"
)

// Opts configures a Client the way client.Opts configures the teacher's
// REST client: a small, mostly-optional bag handed to New.
type Opts struct {
	Host      string
	Port      int
	Timeout   time.Duration
	TLSConfig *tls.Config
	ProxyAddr string
	Logger    sievelog.Logger
}

// Client is a single ManageSieve session: one TCP connection, one protocol
// state machine, driven sequentially (no pipelining, per RFC 5804).
type Client struct {
	mtx          sync.Mutex
	t            *transport
	state        SessionState
	capabilities map[string]string
	activeScript string
	log          sievelog.Logger
	opts         Opts
}

// New constructs a disconnected Client; call Connect to establish the
// session.
func New(opts Opts) *Client {
	if opts.Port == 0 {
		opts.Port = 4190
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	c := &Client{
		state: StateDisconnected,
		log:   opts.Logger,
		opts:  opts,
	}
	if c.log == nil {
		c.log = sievelog.NewDiscard()
	}
	return c
}

// NewFromConfig builds a Client from a loaded config.ClientConfig, the way
// an ingester builds its connection from config.IngestConfig rather than
// taking dial parameters directly.
func NewFromConfig(cc *config.ClientConfig, logger sievelog.Logger) (*Client, error) {
	timeout, err := cc.Timeout()
	if err != nil {
		return nil, err
	}
	opts := Opts{
		Host:      cc.Global.Host,
		Port:      cc.Global.Port,
		Timeout:   timeout,
		ProxyAddr: cc.Global.Proxy,
		Logger:    logger,
	}
	if cc.Global.Use_TLS {
		opts.TLSConfig = &tls.Config{
			ServerName:         cc.Global.Host,
			InsecureSkipVerify: cc.Global.Insecure_Skip_TLS_Verify,
		}
	}
	return New(opts), nil
}

// State reports the session's current lifecycle stage.
func (c *Client) State() SessionState {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.state
}

func (c *Client) setState(s SessionState) {
	c.log.Debugf("managesieve: state %s -> %s", c.state, s)
	c.state = s
}

// Capabilities returns the capability map learned at connect time (and
// refreshed by StartTLS / Capability), keyed by uppercase capability name.
func (c *Client) Capabilities() map[string]string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	out := make(map[string]string, len(c.capabilities))
	for k, v := range c.capabilities {
		out[k] = v
	}
	return out
}

// Connect dials host:port, reads the server greeting, and populates the
// initial capability set. The session moves
// Disconnected -> Connecting -> Greeted.
func (c *Client) Connect(ctx context.Context, host string, port int) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.state != StateDisconnected {
		return &ProtocolError{Reason: fmt.Sprintf("Connect called in state %s", c.state)}
	}
	c.setState(StateConnecting)

	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := dial(ctx, addr, c.opts.ProxyAddr)
	if err != nil {
		c.setState(StateError)
		return err
	}
	c.t = newTransport(conn, c.opts.Timeout)

	lines, comp, err := readResponse(c.t)
	if err != nil {
		c.setState(StateError)
		return err
	}
	if !comp.ok() {
		c.setState(StateError)
		return &ProtocolError{Reason: "greeting was not OK: " + comp.Human}
	}
	c.capabilities = capabilitiesFromLines(lines)
	c.setState(StateGreeted)
	c.log.Infof("managesieve: connected to %s, capabilities=%v", addr, c.capabilities)

	if c.opts.TLSConfig != nil {
		if _, ok := c.capabilities["STARTTLS"]; ok {
			if err := c.startTLSLocked(c.opts.TLSConfig); err != nil {
				return err
			}
		}
	}
	return nil
}

// StartTLS issues STARTTLS, upgrades the transport, and re-reads the
// capability announcement the server is required to resend (spec section
// 4.6). cfg.ServerName should already be set by the caller when needed.
func (c *Client) StartTLS(cfg *tls.Config) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.startTLSLocked(cfg)
}

func (c *Client) startTLSLocked(cfg *tls.Config) error {
	if c.state != StateGreeted {
		return &ProtocolError{Reason: fmt.Sprintf("StartTLS called in state %s", c.state)}
	}
	if _, ok := c.capabilities["STARTTLS"]; !ok {
		return &ProtocolError{Reason: "server did not advertise STARTTLS"}
	}
	if err := c.cmdStartTLS(); err != nil {
		return err
	}
	if err := c.t.upgrade(cfg); err != nil {
		c.setState(StateError)
		return err
	}
	lines, comp, err := readResponse(c.t)
	if err != nil {
		c.setState(StateError)
		return err
	}
	if !comp.ok() {
		c.setState(StateError)
		return &ProtocolError{Reason: "post-STARTTLS capability response was not OK: " + comp.Human}
	}
	c.capabilities = capabilitiesFromLines(lines)
	c.log.Infof("managesieve: TLS established, capabilities=%v", c.capabilities)
	return nil
}

// Capability re-issues CAPABILITY and refreshes the cached map.
func (c *Client) Capability() (map[string]string, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	caps, err := c.cmdCapability()
	if err != nil {
		return nil, err
	}
	c.capabilities = caps
	return caps, nil
}

// Authenticate runs mech to completion against the server via AUTHENTICATE,
// moving Greeted -> Authenticated on success. The session returns to
// Greeted (not Error) on a SASL failure so the caller may retry with a
// different mechanism or credentials.
func (c *Client) Authenticate(mech sasl.Mechanism) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.state != StateGreeted {
		return &ProtocolError{Reason: fmt.Sprintf("Authenticate called in state %s", c.state)}
	}

	line := fmt.Sprintf("AUTHENTICATE %s", quoteString(mech.Name()))
	if ir := mech.InitialResponse(); ir != nil {
		line += " " + quoteString(string(ir))
	}
	if err := c.t.writeLine(line); err != nil {
		c.setState(StateError)
		return err
	}

	for {
		// Each round is exactly one line: either the next challenge, or a
		// tagged completion ending the exchange outright (e.g. a mechanism
		// rejected before offering any challenge at all).
		challenge, comp, err := readChallengeOrCompletion(c.t)
		if err != nil {
			c.setState(StateError)
			return err
		}
		if comp != nil {
			return c.finishAuthenticate(mech, nil, *comp)
		}

		resp, done, err := mech.Step(challenge)
		if err != nil {
			if resp != nil {
				_ = c.t.writeLine(quoteString(string(resp)))
			}
			return &AuthError{Mechanism: mech.Name(), Reason: err.Error()}
		}
		if resp == nil {
			resp = []byte{}
		}
		if err := c.t.writeLine(quoteString(string(resp))); err != nil {
			c.setState(StateError)
			return err
		}
		if done {
			// The mechanism is satisfied; the server's final word may still
			// carry untagged capability lines ahead of its tagged OK/NO/BYE.
			lines, comp, err := readResponse(c.t)
			if err != nil {
				c.setState(StateError)
				return err
			}
			return c.finishAuthenticate(mech, lines, comp)
		}
	}
}

// finishAuthenticate applies a terminal AUTHENTICATE completion, whether it
// arrived immediately (no challenge exchanged) or after the mechanism
// signalled it was done.
func (c *Client) finishAuthenticate(mech sasl.Mechanism, lines []responseLine, comp completion) error {
	if comp.bye() {
		c.setState(StateDisconnected)
		return &ProtocolError{Reason: "server sent BYE during authentication: " + comp.Human}
	}
	if !comp.ok() {
		return &AuthError{Mechanism: mech.Name(), Reason: comp.Human}
	}
	c.setState(StateAuthenticated)
	if len(lines) > 0 {
		c.capabilities = capabilitiesFromLines(lines)
	}
	c.log.Infof("managesieve: authenticated via %s", mech.Name())
	return nil
}

// ListScripts returns every script on the server. active is the name of the
// currently active script, or "" if none is active.
func (c *Client) ListScripts() (scripts []ScriptListing, active string, err error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err = c.requireAuthenticated(); err != nil {
		return nil, "", err
	}
	scripts, err = c.cmdListScripts()
	if err != nil {
		return nil, "", err
	}
	for _, s := range scripts {
		if s.Active {
			active = s.Name
		}
	}
	return scripts, active, nil
}

// GetScript retrieves a script's body.
func (c *Client) GetScript(name string) (string, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.requireAuthenticated(); err != nil {
		return "", err
	}
	return c.cmdGetScript(name)
}

// PutScript uploads (creates or overwrites) a script.
func (c *Client) PutScript(name, text string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.requireAuthenticated(); err != nil {
		return err
	}
	return c.cmdPutScript(name, text)
}

// DeleteScript removes a script. It is an error to delete the active
// script (spec section 4.6); the server is left to enforce that.
func (c *Client) DeleteScript(name string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.requireAuthenticated(); err != nil {
		return err
	}
	return c.cmdDeleteScript(name)
}

// SetActive marks name as the active script, or clears the active script
// when name is "".
func (c *Client) SetActive(name string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.requireAuthenticated(); err != nil {
		return err
	}
	if err := c.cmdSetActive(name); err != nil {
		return err
	}
	c.activeScript = name
	return nil
}

// HaveSpace asks whether the server would accept a script of size bytes
// under name.
func (c *Client) HaveSpace(name string, size int64) (bool, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.requireAuthenticated(); err != nil {
		return false, err
	}
	return c.cmdHaveSpace(name, size)
}

// RenameScript renames oldName to newName, using native RENAMESCRIPT when
// the server advertises the RENAME capability and falling back to the
// getscript/putscript/setactive/deletescript sequence otherwise (spec
// section 4.6).
func (c *Client) RenameScript(oldName, newName string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.requireAuthenticated(); err != nil {
		return err
	}
	if _, ok := c.capabilities["RENAME"]; ok {
		return c.cmdRenameScript(oldName, newName)
	}
	return c.simulateRename(oldName, newName)
}

// Logout sends LOGOUT and closes the underlying connection.
func (c *Client) Logout() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.state != StateAuthenticated && c.state != StateGreeted {
		return &ProtocolError{Reason: fmt.Sprintf("Logout called in state %s", c.state)}
	}
	err := c.cmdLogout()
	c.setState(StateLoggedOut)
	if cerr := c.t.close(); err == nil {
		err = cerr
	}
	return err
}

// Close forcibly tears down the connection without sending LOGOUT.
func (c *Client) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.t == nil {
		return nil
	}
	c.setState(StateDisconnected)
	return c.t.close()
}

func (c *Client) requireAuthenticated() error {
	if c.state != StateAuthenticated {
		return &ProtocolError{Reason: fmt.Sprintf("command requires state AUTHENTICATED, session is %s", c.state)}
	}
	return nil
}
