package sasl

import "fmt"

// Login implements the (non-standard but widely deployed) LOGIN mechanism:
// the server sends two challenges in turn, conventionally prompting for a
// username and then a password; the client answers each verbatim.
type Login struct {
	Creds Credentials
	step  int
}

func NewLogin(creds Credentials) *Login {
	return &Login{Creds: creds}
}

func (l *Login) Name() string { return "LOGIN" }

func (l *Login) InitialResponse() []byte { return nil }

func (l *Login) Step(challenge []byte) ([]byte, bool, error) {
	switch l.step {
	case 0:
		l.step++
		return []byte(l.Creds.Username), false, nil
	case 1:
		l.step++
		return []byte(l.Creds.Password), true, nil
	default:
		return nil, true, fmt.Errorf("sasl: LOGIN received an unexpected third challenge")
	}
}
