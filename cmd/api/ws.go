package main

import (
	"net/http"

	"groundz/internal/realtime"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// auth already ran in middleware; the token is the origin check
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocketHandler godoc
//
//	@Summary		Realtime event stream
//	@Description	Upgrades to a websocket that streams count changes and refresh hints for the authenticated user
//	@Tags			realtime
//	@Success		101	{string}	string	"Switching Protocols"
//	@Failure		401	{object}	error	"Unauthorized"
//	@Security		ApiKeyAuth
//	@Router			/ws [get]
func (app *application) websocketHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.logger.Warnw("websocket upgrade failed", "user", user.ID, "error", err)
		return
	}

	client := &realtime.Client{
		ID:     uuid.New(),
		UserID: user.ID,
		Conn:   conn,
		Send:   make(chan []byte, 32),
	}

	app.hub.Register(client)

	go app.hub.WritePump(client)
	app.hub.ReadPump(client)
}
