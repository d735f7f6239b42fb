package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xhad/digest/internal/models"
	"github.com/xhad/digest/internal/types"
	"github.com/xhad/digest/pkg/exporter"
	"github.com/xhad/digest/pkg/pipeline"
	"golang.org/x/sync/singleflight"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// SummaryData is the payload of a "summary" message. PDF is base64 encoded
// by encoding/json.
type SummaryData struct {
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
	SourceURL   string    `json:"source_url"`
	TextFile    string    `json:"text_file"`
	PDFFile     string    `json:"pdf_file"`
	PDF         []byte    `json:"pdf,omitempty"`
	PDFError    string    `json:"pdf_error,omitempty"`
}

type ErrorData struct {
	Kind string `json:"kind"`
}

type ProgressData struct {
	Stage string `json:"stage"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// Runner produces a final summary for one URL.
type Runner interface {
	Run(ctx context.Context, rawURL string, onProgress func(pipeline.Progress)) (models.FinalSummary, error)
}

type WSServer struct {
	runner   Runner
	exporter *exporter.Exporter
	inflight singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the shared state of one in-flight URL. Its context is cancelled
// only when the last waiting client has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters map[*client]int
}

func NewWSServer(runner Runner, exp *exporter.Exporter) *WSServer {
	if exp == nil {
		exp = exporter.New()
	}
	return &WSServer{
		runner:   runner,
		exporter: exp,
		flights:  make(map[string]*flight),
	}
}

// client serializes writes; gorilla connections allow one writer at a time.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (s *WSServer) ListenAndServe(addr string) error {
	log.Printf("Starting WebSocket server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &client{conn: conn}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Error reading message: %v", err)
			}
			cancel()
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			s.sendMessage(c, Message{Type: "error", Content: "Malformed message", Data: ErrorData{Kind: types.KindInvalidInput.String()}})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, c, msg)
		}()
	}
}

type result struct {
	summary   models.FinalSummary
	artifacts exporter.Artifacts
}

func (s *WSServer) handleMessage(ctx context.Context, c *client, msg Message) {
	if msg.Type != "summarize" {
		s.sendMessage(c, Message{Type: "error", Content: fmt.Sprintf("Unsupported message type %q", msg.Type), Data: ErrorData{Kind: types.KindInvalidInput.String()}})
		return
	}

	url := strings.TrimSpace(msg.Content)
	if found := urlRegex.FindString(url); found != "" {
		url = found
	}
	s.sendMessage(c, Message{Type: "status", Content: fmt.Sprintf("Processing URL: %s", url)})

	f := s.join(ctx, url, c)
	defer s.leave(url, f, c)

	ch := s.inflight.DoChan(url, func() (interface{}, error) {
		summary, err := s.runner.Run(f.ctx, url, func(p pipeline.Progress) {
			s.broadcast(f, Message{
				Type:    "progress",
				Content: p.Message,
				Data:    ProgressData{Stage: string(p.Stage), Done: p.Done, Total: p.Total},
			})
		})
		if err != nil {
			return nil, err
		}
		return result{summary: summary, artifacts: s.exporter.Export(summary)}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return
	}
	if res.Shared {
		log.Printf("server: shared in-flight result for %s", url)
	}
	if err := res.Err; err != nil {
		log.Printf("server: summarizing %s failed: %v", url, err)
		s.sendMessage(c, Message{Type: "error", Content: types.UserMessage(err), Data: ErrorData{Kind: types.KindOf(err).String()}})
		return
	}

	out := res.Val.(result)
	data := SummaryData{
		Text:        out.summary.Text,
		GeneratedAt: out.summary.GeneratedAt,
		SourceURL:   out.summary.SourceURL,
		TextFile:    out.artifacts.TextName,
		PDFFile:     out.artifacts.PDFName,
		PDF:         out.artifacts.PDF,
	}
	if out.artifacts.PDFErr != nil {
		data.PDFError = types.UserMessage(out.artifacts.PDFErr)
	}
	s.sendMessage(c, Message{Type: "summary", Content: out.summary.Text, Data: data})
}

// join registers c as waiting on url, starting a new flight if none is
// running. The flight keeps ctx's values but not its cancellation.
func (s *WSServer) join(ctx context.Context, url string, c *client) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flights[url]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel, waiters: make(map[*client]int)}
		s.flights[url] = f
	}
	f.waiters[c]++
	return f
}

// leave drops one wait of c. The last waiter out cancels the run and lets
// the next request for url start a fresh one.
func (s *WSServer) leave(url string, f *flight, c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.waiters[c]--
	if f.waiters[c] <= 0 {
		delete(f.waiters, c)
	}
	if len(f.waiters) > 0 {
		return
	}
	f.cancel()
	if s.flights[url] == f {
		delete(s.flights, url)
		s.inflight.Forget(url)
	}
}

func (s *WSServer) broadcast(f *flight, msg Message) {
	s.mu.Lock()
	clients := make([]*client, 0, len(f.waiters))
	for c := range f.waiters {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		s.sendMessage(c, msg)
	}
}

func (s *WSServer) sendMessage(c *client, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
