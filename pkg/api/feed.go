package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/fund"
	"github.com/gorilla/websocket"
	log "github.com/inconshreveable/log15"
)

const (
	feedBuffer     = 64
	feedWriteWait  = 10 * time.Second
	feedPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Feed streams every recorded donation to the connected websocket
// clients. Anonymous donors arrive already masked.
type Feed struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan *fund.Donation
}

func NewFeed() *Feed {
	return &Feed{clients: make(map[*websocket.Conn]chan *fund.Donation)}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// PublishDonation never blocks, a client that falls behind misses
// donations.
func (f *Feed) PublishDonation(d *fund.Donation) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for conn, ch := range f.clients {
		select {
		case ch <- d:
		default:
			log.Warn("feed client too slow, dropping donation", "remote", conn.RemoteAddr(), "donation", d.ID)
		}
	}
}

func (f *Feed) remove(conn *websocket.Conn) {
	f.mu.Lock()
	ch, ok := f.clients[conn]
	if ok {
		delete(f.clients, conn)
		close(ch)
	}
	f.mu.Unlock()
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("feed upgrade error", "remote", r.RemoteAddr, "err", err)
		return
	}

	ch := make(chan *fund.Donation, feedBuffer)
	f.mu.Lock()
	f.clients[conn] = ch
	f.mu.Unlock()
	log.Debug("feed client connected", "remote", conn.RemoteAddr())

	go f.write(conn, ch)

	// the read side only detects the client going away.
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
	f.remove(conn)
}

func (f *Feed) write(conn *websocket.Conn, ch chan *fund.Donation) {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case d, ok := <-ch:
			if !ok {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			err := conn.WriteJSON(d)
			if err != nil {
				log.Warn("feed write error", "remote", conn.RemoteAddr(), "err", err)
				f.remove(conn)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				f.remove(conn)
				return
			}
		}
	}
}
