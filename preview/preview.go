// Package preview broadcasts pipeline output frames to WebSocket clients
// as JPEG images, for watching the capture output in a browser without a
// native display surface.
package preview

import (
	"bytes"
	"image"
	"image/jpeg"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vidpipe/video"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 80

var upgrader = websocket.Upgrader{
	// The preview endpoint carries no credentials and is meant for local
	// viewing, so cross-origin pages may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is an http.Handler that upgrades connections to WebSocket and
// pushes every published frame to all connected clients. A client that
// cannot keep up is disconnected rather than allowed to stall the
// publisher.
type Server struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	quality int
	closed  bool
}

// NewServer creates a preview server encoding frames at the given JPEG
// quality (1..100). Zero selects DefaultQuality.
func NewServer(quality int) *Server {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Server{
		clients: make(map[*websocket.Conn]bool),
		quality: quality,
	}
}

// ClientCount returns the number of currently connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ServeHTTP upgrades the request to a WebSocket connection and registers
// it to receive published frames. The connection is read from only to
// detect closure; clients are not expected to send anything.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Server.ServeHTTP",
			"remote":   r.RemoteAddr,
			"error":    err,
		}).Warn("WebSocket upgrade failed")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[conn] = true
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Server.ServeHTTP",
		"remote":   conn.RemoteAddr().String(),
	}).Info("Preview client connected")

	// Drain the connection until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(conn)
}

// Publish encodes the frame as JPEG and sends it to every connected
// client as a binary message. Publishing with no clients connected is a
// no-op and skips the encode entirely.
func (s *Server) Publish(frame *video.Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if len(s.clients) == 0 || s.closed {
		s.mu.Unlock()
		return nil
	}
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frameImage(frame), &jpeg.Options{Quality: s.quality}); err != nil {
		return err
	}
	payload := buf.Bytes()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.BinaryMessage, payload); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Server.Publish",
				"remote":   c.RemoteAddr().String(),
				"error":    err,
			}).Debug("Dropping preview client")
			s.drop(c)
		}
	}
	return nil
}

// Close disconnects all clients and rejects future connections.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	s.mu.Unlock()
	if ok {
		conn.Close()
	}
}

// frameImage wraps a frame's pixel buffer as an image for encoding,
// swapping the blue and red channels from the frame's BGRA byte order
// into the RGBA order the image package expects.
func frameImage(f *video.Frame) image.Image {
	w := int(f.Resolution.Width)
	h := int(f.Resolution.Height)

	// Frames may carry a buffer larger than the mode needs; copy only
	// what the image can hold.
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	n := len(f.Pixels)
	if len(img.Pix) < n {
		n = len(img.Pix)
	}
	for i := 0; i+3 < n; i += 4 {
		img.Pix[i+0] = f.Pixels[i+2]
		img.Pix[i+1] = f.Pixels[i+1]
		img.Pix[i+2] = f.Pixels[i+0]
		img.Pix[i+3] = 0xff
	}
	return img
}
