package sasl

// Plain implements the PLAIN mechanism (RFC 4616): a single initial
// response of the form \0user\0password, no further challenges.
type Plain struct {
	Creds Credentials
	sent  bool
}

func NewPlain(creds Credentials) *Plain {
	return &Plain{Creds: creds}
}

func (p *Plain) Name() string { return "PLAIN" }

func (p *Plain) InitialResponse() []byte {
	p.sent = true
	authzid := "" // we never act on behalf of another identity
	return []byte(authzid + "\x00" + p.Creds.Username + "\x00" + p.Creds.Password)
}

func (p *Plain) Step(challenge []byte) ([]byte, bool, error) {
	// PLAIN completes with its initial response; any further challenge
	// means the server wants a response we don't have.
	return nil, true, nil
}
