package imap

import "github.com/emersion/go-sasl"

// xoauth2Client implements the SASL XOAUTH2 mechanism Gmail requires for
// OAuth2 bearer-token logins. go-sasl ships OAUTHBEARER but not XOAUTH2,
// so the initial response is built here.
type xoauth2Client struct {
	identity string
	token    string
}

func newXOAuth2(identity, token string) sasl.Client {
	return &xoauth2Client{identity: identity, token: token}
}

// Start returns the mechanism name and the XOAUTH2 initial response:
// "user=<identity>\x01auth=Bearer <token>\x01\x01". The IMAP client
// base64-encodes it on the wire.
func (c *xoauth2Client) Start() (string, []byte, error) {
	resp := []byte("user=" + c.identity + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", resp, nil
}

// Next is unused: XOAUTH2 has no challenge-response step. The server may
// send an error challenge on failure, which we answer with an empty line.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return nil, nil
}
