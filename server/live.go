package server

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

// Number of recent samples sent to a live viewer as soon as it connects
const liveBacklog = 50

// httpLive streams samples over a websocket, as they are produced.
// Each message is a JSON sample.Sample. A viewer that can't keep up misses samples.
func (s *Server) httpLive(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpLive websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	live, stopListening := s.Pump.Listen()
	defer stopListening()

	for _, smp := range s.Pump.Recent(liveBacklog) {
		if err := c.WriteJSON(&smp); err != nil {
			return
		}
	}

	// We don't expect any messages from the client, but we must read in order to notice when it goes away
	closed := make(chan bool)
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				close(closed)
				return
			}
		}
	}()

	for {
		select {
		case smp, ok := <-live:
			if !ok {
				return
			}
			c.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.WriteJSON(&smp); err != nil {
				s.Log.Infof("httpLive write failed: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}
