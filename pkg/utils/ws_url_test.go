package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildWebSocketURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:3005/ws?uuid=abc", BuildWebSocketURL("http://localhost:3005", "abc"))
	assert.Equal(t, "wss://share.example.com/ws?uuid=a+b", BuildWebSocketURL("https://share.example.com/", "a b"))
}

func TestBuildHTTPURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3005/isValidRoom", BuildHTTPURL("http://localhost:3005/", "/isValidRoom"))
}
