// mromlive runs a ROM in real time and broadcasts mrom.snap.v1 frame
// snapshots to websocket clients, skipping frames whose pixels did not
// change. With -ndjson it streams snapshots to stdout instead.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/cespare/xxhash"
	"github.com/gorilla/websocket"

	"github.com/EvezArt/metarom-go/internal/emu"
	"github.com/EvezArt/metarom-go/pkg/romfile"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 16),
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default: // slow client: drop it
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

func (h *hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 8)}
	h.register <- c
	go c.writePump(h)
	go c.readPump(h)
}

func (c *client) writePump(h *hub) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) readPump(h *hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// replayDoc is the mrom.replay.v1 capture written at exit.
type replayDoc struct {
	Version  string            `json:"version"`
	ROMTitle string            `json:"rom_title"`
	Frames   []emu.FrameRecord `json:"frames"`
}

func main() {
	romPath := flag.String("rom", "", "path to ROM; empty runs the synthetic test ROM")
	addr := flag.String("addr", ":8090", "websocket listen address")
	frames := flag.Uint64("frames", 0, "stop after N frames (0 = run until interrupted)")
	ndjson := flag.Bool("ndjson", false, "stream snapshots to stdout instead of serving websocket")
	keyframe := flag.Uint64("keyframe", 60, "send an unchanged frame at least every N frames")
	replayPath := flag.String("replay", "", "write an mrom.replay.v1 capture here at exit")
	flag.Parse()

	var rom []byte
	if *romPath != "" {
		b, err := romfile.Load(*romPath)
		if err != nil {
			log.Fatalf("read rom: %v", err)
		}
		rom = b
	} else {
		rom = emu.SyntheticROM("METAROM-LIVE")
	}
	m, err := emu.NewFromROM(rom, emu.Config{})
	if err != nil {
		log.Fatalf("invalid ROM: %v", err)
	}
	log.Printf("mromlive: ROM %q mbc=%s addr=%s", m.Cart.Title, m.Cart.Kind, *addr)

	var h *hub
	if !*ndjson {
		h = newHub()
		go h.run()
		http.HandleFunc("/", h.serve)
		go func() {
			if err := http.ListenAndServe(*addr, nil); err != nil {
				log.Fatalf("listen: %v", err)
			}
		}()
	}

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	var replay *replayDoc
	if *replayPath != "" {
		replay = &replayDoc{Version: "mrom.replay.v1", ROMTitle: m.Cart.Title}
	}

	var lastHash uint64
	var sinceKey uint64
	for frame := uint64(0); *frames == 0 || frame < *frames; frame++ {
		<-ticker.C
		m.RunFrame()
		if replay != nil {
			replay.Frames = append(replay.Frames, m.CaptureFrame(frame))
		}

		hash := xxhash.Sum64(m.Framebuffer())
		sinceKey++
		if hash == lastHash && sinceKey < *keyframe {
			continue // unchanged frame: skip
		}
		lastHash = hash
		sinceKey = 0

		snap, err := m.SnapJSON()
		if err != nil {
			continue
		}
		if *ndjson {
			fmt.Fprintln(os.Stdout, string(snap))
		} else {
			h.broadcast <- snap
		}
		if frame%600 == 0 {
			log.Printf("frame %d %s", frame, m.StateSummary())
		}
	}
	if replay != nil {
		data, err := json.MarshalIndent(replay, "", "  ")
		if err == nil {
			err = os.WriteFile(*replayPath, data, 0o644)
		}
		if err != nil {
			log.Printf("replay write failed: %v", err)
		} else {
			log.Printf("replay written: %s (%d frames)", *replayPath, len(replay.Frames))
		}
	}
	log.Printf("done: %s", m.StateSummary())
}
