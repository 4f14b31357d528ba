package service

// TokenProvider supplies the current session credential. It is injected into
// the REST client and the socket adapter instead of either reading ambient
// storage, which keeps both testable without a browser-style storage API.
type TokenProvider interface {
	Token() (string, error)
}

// StaticToken is a TokenProvider for a fixed credential, e.g. one minted at
// login and held for the session.
type StaticToken string

func (s StaticToken) Token() (string, error) {
	return string(s), nil
}
