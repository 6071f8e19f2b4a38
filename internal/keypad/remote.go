// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
package keypad

import (
	"context"
	"encoding/json"
	"net/http"
	"unicode/utf8"

	"roastctl/pkg/logger"
	"roastctl/pkg/rootserv"

	"github.com/gorilla/websocket"
)

type keyMsg struct {
	Key string `json:"key"`
}

type keyAck struct {
	Key   string `json:"key"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Remote accepts keypresses over a websocket at /keys, e.g. from a phone
// next to the roaster. Messages are {"key": "5"}; "enter" is the drop key.
type Remote struct {
	srv      *rootserv.RootServer
	h        KeyHandler
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewRemote(addr string, h KeyHandler) *Remote {
	r := &Remote{
		srv: rootserv.New(addr),
		h:   h,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.New("RemoteKeypad"),
	}
	r.srv.Attach("/keys", "operator keypad (websocket)", http.HandlerFunc(r.serveWS))
	return r
}

func (r *Remote) Handler() http.Handler {
	return r.srv.Handler()
}

func (r *Remote) Run(ctx context.Context) error {
	return r.srv.Run(ctx)
}

func (r *Remote) serveWS(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("upgrade: %v", err)
		return
	}
	defer conn.Close()
	r.log.Info("Operator connected from %s", req.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.log.Debug("read: %v", err)
			}
			r.log.Info("Operator disconnected")
			return
		}

		var msg keyMsg
		ack := keyAck{}
		if err := json.Unmarshal(data, &msg); err != nil {
			ack.Error = "invalid message"
		} else if k, ok := parseKey(msg.Key); !ok {
			ack.Key = msg.Key
			ack.Error = "key must be a single character or \"enter\""
		} else {
			ack.Key = msg.Key
			ack.OK = true
			r.h.HandleKey(k)
		}
		if err := conn.WriteJSON(ack); err != nil {
			r.log.Debug("write: %v", err)
			return
		}
	}
}

func parseKey(s string) (rune, bool) {
	if s == "enter" {
		return '\n', true
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, false
	}
	k, _ := utf8.DecodeRuneInString(s)
	return k, true
}
