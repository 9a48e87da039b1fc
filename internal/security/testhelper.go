package security

import (
	"sync"
	"time"
)

var (
	testKeysOnce sync.Once
	testPrivate  string
	testPublic   string
	testKeysErr  error
)

func testKeyPEM() (string, string, error) {
	testKeysOnce.Do(func() {
		testPrivate, testPublic, testKeysErr = GenerateKeyPEM()
	})
	return testPrivate, testPublic, testKeysErr
}

// NewTestTokenProvider returns an ES256 provider for tests. Every provider returned in
// one process shares the same key pair, so tokens issued by one validate with another.
func NewTestTokenProvider() (*TokenProvider, error) {
	priv, pub, err := testKeyPEM()
	if err != nil {
		return nil, err
	}
	return NewTokenProviderFromPEM(priv, pub, "test-issuer", "test-audience", 15*time.Minute)
}
