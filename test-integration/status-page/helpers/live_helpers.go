package helpers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/onsi/gomega"

	"github.com/stacklok/status-page-server/internal/api/live"
)

// LiveClient is a browser connected to /live
type LiveClient struct {
	conn *websocket.Conn
}

// ConnectLive opens the live update websocket of the server
func (s *ServerTestHelper) ConnectLive() *LiveClient {
	url := "ws" + strings.TrimPrefix(s.baseURL, "http") + "/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	_ = resp.Body.Close()
	return &LiveClient{conn: conn}
}

// Next reads the next message, failing after timeout
func (c *LiveClient) Next(timeout time.Duration) live.Message {
	gomega.Expect(c.conn.SetReadDeadline(time.Now().Add(timeout))).To(gomega.Succeed())
	_, data, err := c.conn.ReadMessage()
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	var msg live.Message
	gomega.Expect(json.Unmarshal(data, &msg)).To(gomega.Succeed())
	return msg
}

// WaitFor reads messages until one of type typ arrives
func (c *LiveClient) WaitFor(typ string, timeout time.Duration) live.Message {
	deadline := time.Now().Add(timeout)
	for {
		msg := c.Next(time.Until(deadline))
		if msg.Type == typ {
			return msg
		}
	}
}

// Close closes the connection
func (c *LiveClient) Close() {
	_ = c.conn.Close()
}
