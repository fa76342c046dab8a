package sasl

import (
	"fmt"

	"github.com/xdg-go/scram"
)

// ScramSHA256 implements the supplemental SCRAM-SHA-256 mechanism. It isn't
// one of spec section 4.6's four mandated mechanisms, but it's the most
// common SASL mechanism on real-world ManageSieve deployments that this
// package doesn't otherwise cover.
type ScramSHA256 struct {
	Creds Credentials
	conv  *scram.ClientConversation
	first bool
}

func NewScramSHA256(creds Credentials) (*ScramSHA256, error) {
	client, err := scram.SHA256.NewClient(creds.Username, creds.Password, "")
	if err != nil {
		return nil, fmt.Errorf("sasl: SCRAM-SHA-256 setup: %w", err)
	}
	return &ScramSHA256{Creds: creds, conv: client.NewConversation()}, nil
}

func (s *ScramSHA256) Name() string { return "SCRAM-SHA-256" }

func (s *ScramSHA256) InitialResponse() []byte {
	first, err := s.conv.Step("")
	if err != nil {
		// Step() only fails here on a malformed conversation state, which
		// can't happen this early; surface it as an empty response so the
		// server's NO carries the failure instead of panicking.
		return []byte{}
	}
	s.first = true
	return []byte(first)
}

func (s *ScramSHA256) Step(challenge []byte) ([]byte, bool, error) {
	resp, err := s.conv.Step(string(challenge))
	if err != nil {
		return nil, true, fmt.Errorf("sasl: SCRAM-SHA-256: %w", err)
	}
	return []byte(resp), s.conv.Done(), nil
}
