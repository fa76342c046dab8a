package managesieve

import (
	"fmt"
	"strings"
)

// ScriptListing is one entry returned by LISTSCRIPTS: a script name and
// whether it is the currently active script.
type ScriptListing struct {
	Name   string
	Active bool
}

// runSimple sends line, drains the response, and turns a NO completion into
// a *ServerError. It is the shape every fire-and-forget command
// (STARTTLS, LOGOUT, SETACTIVE, DELETESCRIPT, ...) shares.
func (c *Client) runSimple(command, line string) ([]responseLine, error) {
	if err := c.t.writeLine(line); err != nil {
		c.setState(StateError)
		return nil, err
	}
	lines, comp, err := readResponse(c.t)
	if err != nil {
		c.setState(StateError)
		return nil, err
	}
	if comp.bye() {
		c.setState(StateDisconnected)
		return lines, &ProtocolError{Reason: "server sent BYE: " + comp.Human}
	}
	if !comp.ok() {
		return lines, &ServerError{Command: command, Message: comp.Human}
	}
	return lines, nil
}

func (c *Client) cmdCapability() (map[string]string, error) {
	lines, err := c.runSimple("CAPABILITY", "CAPABILITY")
	if err != nil {
		return nil, err
	}
	return capabilitiesFromLines(lines), nil
}

func (c *Client) cmdStartTLS() error {
	_, err := c.runSimple("STARTTLS", "STARTTLS")
	return err
}

func (c *Client) cmdLogout() error {
	_, err := c.runSimple("LOGOUT", "LOGOUT")
	return err
}

func (c *Client) cmdHaveSpace(name string, size int64) (bool, error) {
	line := fmt.Sprintf("HAVESPACE %s %d", quoteString(name), size)
	_, err := c.runSimple("HAVESPACE", line)
	if err != nil {
		if _, ok := err.(*ServerError); ok {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Client) cmdPutScript(name, script string) error {
	line := fmt.Sprintf("PUTSCRIPT %s %s", quoteString(name), quoteString(script))
	_, err := c.runSimple("PUTSCRIPT", line)
	return err
}

func (c *Client) cmdSetActive(name string) error {
	line := fmt.Sprintf("SETACTIVE %s", quoteString(name))
	_, err := c.runSimple("SETACTIVE", line)
	return err
}

func (c *Client) cmdDeleteScript(name string) error {
	line := fmt.Sprintf("DELETESCRIPT %s", quoteString(name))
	_, err := c.runSimple("DELETESCRIPT", line)
	return err
}

func (c *Client) cmdGetScript(name string) (string, error) {
	line := fmt.Sprintf("GETSCRIPT %s", quoteString(name))
	lines, err := c.runSimple("GETSCRIPT", line)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 || len(lines[0]) == 0 {
		return "", nil
	}
	return lines[0][0], nil
}

func (c *Client) cmdListScripts() ([]ScriptListing, error) {
	lines, err := c.runSimple("LISTSCRIPTS", "LISTSCRIPTS")
	if err != nil {
		return nil, err
	}
	var out []ScriptListing
	for _, l := range lines {
		if len(l) == 0 {
			continue
		}
		entry := ScriptListing{Name: l[0]}
		if len(l) > 1 && strings.EqualFold(l[1], "ACTIVE") {
			entry.Active = true
		}
		out = append(out, entry)
	}
	return out, nil
}

// cmdRenameScript issues native RENAMESCRIPT, for servers advertising the
// RENAME capability.
func (c *Client) cmdRenameScript(oldName, newName string) error {
	line := fmt.Sprintf("RENAMESCRIPT %s %s", quoteString(oldName), quoteString(newName))
	_, err := c.runSimple("RENAMESCRIPT", line)
	return err
}

// simulateRename implements spec section 4.6's fallback for servers lacking
// the RENAME capability: getscript -> putscript -> setactive (if the old
// name was active) -> deletescript, rolling back the new script on any
// intermediate failure so no partial rename is left behind.
func (c *Client) simulateRename(oldName, newName string) error {
	body, err := c.cmdGetScript(oldName)
	if err != nil {
		return err
	}

	listing, err := c.cmdListScripts()
	if err != nil {
		return err
	}
	wasActive := false
	for _, l := range listing {
		if l.Name == oldName && l.Active {
			wasActive = true
		}
	}

	if err := c.cmdPutScript(newName, body); err != nil {
		return err // nothing written yet under newName; no rollback needed
	}
	if wasActive {
		if err := c.cmdSetActive(newName); err != nil {
			_ = c.cmdDeleteScript(newName)
			return err
		}
	}
	if err := c.cmdDeleteScript(oldName); err != nil {
		_ = c.cmdDeleteScript(newName)
		return err
	}
	return nil
}
