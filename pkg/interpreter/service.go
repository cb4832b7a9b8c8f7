package interpreter

import (
	"context"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

const (
	maxRetries     = 10
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second
	pingInterval   = 30 * time.Second
	// Readings only arrive when someone triggers a read, so liveness is judged by pongs.
	pongWait = 3 * pingInterval
)

// ListenerURL builds the websocket address of a reader_api host.
func ListenerURL(host string, tls bool) string {
	scheme := "ws"
	if tls {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: host, Path: "/ws"}
	return u.String()
}

// StartListener keeps a websocket subscription to reader_api open and calls
// funcToCall for each reading. It reconnects with exponential backoff and
// returns when ctx is cancelled or the retries are exhausted.
func StartListener(ctx context.Context, host string, tls bool, log logrus.FieldLogger, funcToCall func(reading *types.Reading)) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	addr := ListenerURL(host, tls)
	log = log.WithField("url", addr)

	retryCount := 0
	for {
		if retryCount > 0 {
			// Calculate retry delay with exponential backoff
			retryDelay := time.Duration(1<<retryCount) * baseRetryDelay
			if retryDelay > maxRetryDelay {
				retryDelay = maxRetryDelay
			}
			log.Infof("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, maxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				log.Info("Shutdown requested during retry wait")
				return
			}
		}

		log.Info("Connecting to reader API")
		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, addr, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("Connection failed")
			retryCount++
			if retryCount >= maxRetries {
				log.Errorf("Max retries (%d) reached. Giving up.", maxRetries)
				return
			}
			continue
		}

		log.Info("Connected! Accepting meter readings.")
		retryCount = 0

		connectionBroken := handleConnection(ctx, c, log, funcToCall)
		c.Close()
		if !connectionBroken {
			return
		}
		log.Warn("Connection lost, will retry...")
		retryCount = 1
	}
}

func handleConnection(
	ctx context.Context,
	c *websocket.Conn,
	log logrus.FieldLogger,
	funcToCall func(reading *types.Reading),
) bool {
	done := make(chan struct{})

	c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WithError(err).Warn("WebSocket error")
				} else {
					log.WithError(err).Info("Connection closed")
				}
				return
			}
			c.SetReadDeadline(time.Now().Add(pongWait))

			if messageType != websocket.TextMessage {
				log.Warnf("Received unexpected message type: %d", messageType)
				continue
			}
			reading, err := types.ReadingFromJsonBytes(message)
			if err != nil {
				log.WithError(err).Warn("Failed to parse meter reading")
				continue
			}
			funcToCall(reading)
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.WithError(err).Warn("Failed to send ping")
			}
		case <-done:
			return true
		case <-ctx.Done():
			log.Info("Shutdown requested, closing connection...")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.WithError(err).Warn("Error sending close message")
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
