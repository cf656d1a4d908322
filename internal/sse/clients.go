// Package sse provides Server-Sent Events client management for real-time communication.
package sse

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/debemdeboas/the-pantry/internal/config"
)

// clientBuffer is the number of undelivered messages kept per client.
// Older messages are dropped when a client falls behind.
const clientBuffer = 8

type Client struct {
	Msg chan Message
	// Key is the draft the client follows: a provisional key or a server id.
	Key string
}

// Message is one event on the stream.
type Message struct {
	Event string
	Data  string
}

func NewClient(key string) *Client {
	return &Client{
		Msg: make(chan Message, clientBuffer),
		Key: key,
	}
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends msg to every client following one of keys. It never blocks.
func (s *SSEClients) Broadcast(msg Message, keys ...string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if !matches(client.Key, keys) {
			continue
		}
		select {
		case client.Msg <- msg:
		default:
		}
	}
}

func matches(key string, keys []string) bool {
	for _, k := range keys {
		if k != "" && k == key {
			return true
		}
	}
	return false
}

// Serve streams the messages of client until the request is done.
// The client is registered for the duration of the call.
func (s *SSEClients) Serve(w http.ResponseWriter, r *http.Request, client *Client) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	w.Header().Set(config.HCType, config.CTypeEventStream)
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	s.Add(client)
	defer s.Delete(client)

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	notify := r.Context().Done()
	for {
		select {
		case msg, ok := <-client.Msg:
			if !ok {
				return nil
			}
			if msg.Event != "" {
				fmt.Fprintf(w, "event: %s\n", msg.Event)
			}
			fmt.Fprintf(w, "data: %s\n\n", msg.Data)
			flusher.Flush()
		case <-notify:
			return nil
		}
	}
}
