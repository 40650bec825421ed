package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func RegisterRoutes(r fiber.Router, hub *Hub) {
	r.Get("/ws/:sessionID", websocket.New(func(c *websocket.Conn) {
		serve(c, hub, SessionTopic(c.Params("sessionID")))
	}))

	r.Get("/ws/:sessionID/alerts/:participantID", websocket.New(func(c *websocket.Conn) {
		serve(c, hub, AlertTopic(c.Params("sessionID"), c.Params("participantID")))
	}))
}

func serve(c *websocket.Conn, hub *Hub, topic string) {
	client := hub.Register(topic)
	defer hub.Unregister(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
	hub.Unregister(client)
	<-done
}
