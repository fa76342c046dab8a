package sasl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlainInitialResponse(t *testing.T) {
	p := NewPlain(Credentials{Username: "u", Password: "p"})
	got := p.InitialResponse()
	require.Equal(t, []byte("\x00u\x00p"), got)

	resp, done, err := p.Step([]byte("anything"))
	require.NoError(t, err)
	require.True(t, done)
	require.Nil(t, resp)
}

func TestLoginTwoStepChallenge(t *testing.T) {
	l := NewLogin(Credentials{Username: "u", Password: "p"})
	require.Nil(t, l.InitialResponse())

	resp, done, err := l.Step([]byte("Username:"))
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, []byte("u"), resp)

	resp, done, err = l.Step([]byte("Password:"))
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, []byte("p"), resp)
}

func TestLoginRejectsThirdChallenge(t *testing.T) {
	l := NewLogin(Credentials{Username: "u", Password: "p"})
	_, _, _ = l.Step([]byte("1"))
	_, _, _ = l.Step([]byte("2"))
	_, done, err := l.Step([]byte("3"))
	require.Error(t, err)
	require.True(t, done)
}

func TestDigestMD5RespondsWithExpectedFields(t *testing.T) {
	d := NewDigestMD5(Credentials{Username: "u", Password: "p", Host: "mail.example.com"})
	d.cnonceFn = func() string { return "fixedcnonce" }

	challenge := []byte(`realm="example.com",nonce="abc123",qop="auth",charset=utf-8,algorithm=md5-sess`)
	resp, done, err := d.Step(challenge)
	require.NoError(t, err)
	require.False(t, done)
	s := string(resp)
	require.Contains(t, s, `username="u"`)
	require.Contains(t, s, `realm="example.com"`)
	require.Contains(t, s, `nonce="abc123"`)
	require.Contains(t, s, `cnonce="fixedcnonce"`)
	require.Contains(t, s, `nc=00000001`)
	require.Contains(t, s, `qop=auth`)
	require.Contains(t, s, `digest-uri="sieve/mail.example.com"`)
	require.Contains(t, s, "response=")
	require.Contains(t, s, "charset=utf-8")

	// rspauth continuation: empty response, exchange done.
	resp, done, err = d.Step([]byte(`rspauth=deadbeef`))
	require.NoError(t, err)
	require.True(t, done)
	require.Empty(t, resp)
}

func TestDigestMD5MissingNonceFails(t *testing.T) {
	d := NewDigestMD5(Credentials{Username: "u", Password: "p"})
	_, done, err := d.Step([]byte(`realm="example.com"`))
	require.Error(t, err)
	require.True(t, done)
}

func TestOAuthBearerInitialResponseShape(t *testing.T) {
	o := NewOAuthBearer(Credentials{Username: "u", Token: "tok123"})
	got := string(o.InitialResponse())
	require.Equal(t, "n,a=u,\x01auth=Bearer tok123\x01\x01", got)
}

func TestOAuthBearerStepTerminatesOnFailure(t *testing.T) {
	o := NewOAuthBearer(Credentials{Username: "u", Token: "bad"})
	resp, done, err := o.Step([]byte(`{"status":"invalid_token"}`))
	require.Error(t, err)
	require.True(t, done)
	require.Equal(t, []byte{0x01}, resp)
}

func TestParseDigestParamsHandlesQuotedCommas(t *testing.T) {
	params := parseDigestParams(`realm="a,b",nonce="xyz",qop="auth,auth-int"`)
	require.Equal(t, "a,b", params["realm"])
	require.Equal(t, "xyz", params["nonce"])
	require.Equal(t, "auth,auth-int", params["qop"])
}
