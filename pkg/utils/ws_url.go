package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildWebSocketURL turns the coordinator's http(s) base URL into its websocket endpoint,
// identifying the connecting participant by userID.
func BuildWebSocketURL(baseURL, userID string) string {
	wsURL := strings.TrimRight(baseURL, "/")
	wsURL = strings.Replace(wsURL, "https", "wss", 1)
	wsURL = strings.Replace(wsURL, "http", "ws", 1)
	return fmt.Sprintf("%s/ws?uuid=%s", wsURL, url.QueryEscape(userID))
}

// BuildHTTPURL joins the coordinator base URL with an API path.
func BuildHTTPURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
