// Command client is a small interactive client for poking at a running
// coordinator from the terminal.
//
//	go run ./client -host            # create a room and print its code
//	go run ./client -room BRAVE-1234 -player p1 -name Alice
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   *int64          `json:"ack,omitempty"`
}

var ackSeq atomic.Int64

// send formats and sends an event to the WebSocket server.
func send(c *websocket.Conn, event string, payload any, wantAck bool) error {
	msg := message{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Data = data
	}
	if wantAck {
		id := ackSeq.Add(1)
		msg.Ack = &id
	}
	return c.WriteJSON(msg)
}

func main() {
	addr := flag.String("addr", "localhost:3001", "server address")
	host := flag.Bool("host", false, "create a room and act as its host")
	roomCode := flag.String("room", "", "room code to join")
	playerID := flag.String("player", "", "player id")
	name := flag.String("name", "", "display name")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			var msg message
			if err := c.ReadJSON(&msg); err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- %s %s", msg.Event, string(msg.Data))
		}
	}()

	if *host {
		log.Println("Sending create_room request...")
		if err := send(c, "create_room", nil, true); err != nil {
			log.Println("Write error:", err)
			return
		}
		log.Println("Commands: start <ROOM>")
	} else {
		if *roomCode == "" || *playerID == "" {
			log.Fatal("-room and -player are required unless -host is set")
		}
		join := map[string]string{"roomCode": *roomCode, "playerId": *playerID, "playerName": *name}
		if err := send(c, "join_room", join, false); err != nil {
			log.Println("Write error:", err)
			return
		}
		log.Println("Commands: buzz | answer <text>")
	}

	lines := make(chan string)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			text, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- strings.TrimSpace(text)
		}
	}()

	// Write loop
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case text, ok := <-lines:
			if !ok {
				return
			}
			cmd, arg, _ := strings.Cut(text, " ")
			switch cmd {
			case "start":
				err = send(c, "start_game", map[string]string{"roomCode": arg, "game": "trivia"}, false)
			case "buzz":
				err = send(c, "buzz_in", map[string]string{"playerId": *playerID}, false)
			case "answer":
				err = send(c, "submit_answer", map[string]string{"playerId": *playerID, "answer": arg}, false)
			case "":
				continue
			default:
				log.Printf("unknown command %q", cmd)
				continue
			}
			if err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", cmd)
		}
	}
}
