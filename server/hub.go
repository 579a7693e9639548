package server

import (
	"context"
	"encoding/json"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/deque"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/sweep"
)

// 消息类型
const (
	TypeEnv     = "env"
	TypeEnvSet  = "envSet"
	TypeStart   = "start"
	TypeStarted = "started"
	TypeStop    = "stop"
	TypeStopped = "stopped"
	TypeRow     = "row"
	TypeDone    = "done"
	TypeError   = "error"
)

const sendBuffer = 256

type client struct {
	send chan model.Msg
}

type directed struct {
	c   *client
	msg model.Msg
}

// Hub 维护所有连接，把扫描结果广播给每个前端，新连接先收到最近的历史消息
type Hub struct {
	clients map[*client]struct{}

	register   chan *client
	unregister chan *client
	broadcast  chan model.Msg
	reply      chan directed
	done       chan struct{}

	history *deque.ArrDeque[model.Msg]
	logger  *log.Entry
}

func NewHub(historySize int, logger *log.Entry) *Hub {
	if historySize < 1 {
		historySize = 1
	}
	if historySize > sendBuffer {
		historySize = sendBuffer
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan model.Msg, 64),
		reply:      make(chan directed, 16),
		done:       make(chan struct{}),
		history:    deque.NewArrDeque[model.Msg](historySize),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
		close(h.done)
	}()
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.history.Traverse(func(i int, m *model.Msg) {
				h.deliver(c, *m)
			})
			h.logger.WithField("clients", len(h.clients)).Info("client connected")
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.WithField("clients", len(h.clients)).Info("client disconnected")
			}
		case m := <-h.broadcast:
			if m.Type == TypeStarted {
				h.history.Clear()
			}
			h.history.AddLast(m)
			for c := range h.clients {
				h.deliver(c, m)
			}
		case d := <-h.reply:
			if _, ok := h.clients[d.c]; ok {
				h.deliver(d.c, d.msg)
			}
		case <-ctx.Done():
			return
		}
	}
}

// 发送缓冲已满的连接视为失效
func (h *Hub) deliver(c *client, m model.Msg) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- m:
	default:
		delete(h.clients, c)
		close(c.send)
		h.logger.Warn("client too slow, dropped")
	}
}

func (h *Hub) join() (*client, bool) {
	c := &client{send: make(chan model.Msg, sendBuffer)}
	select {
	case h.register <- c:
		return c, true
	case <-h.done:
		return nil, false
	}
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Broadcast(m model.Msg) {
	select {
	case h.broadcast <- m:
	case <-h.done:
	}
}

func (h *Hub) Reply(c *client, m model.Msg) {
	select {
	case h.reply <- directed{c: c, msg: m}:
	case <-h.done:
	}
}

// 推送给前端的一行，NaN 和 Inf 编码为 null
type rowPayload struct {
	Sweep   string     `json:"sweep"`
	Index   int        `json:"index"`
	Total   int        `json:"total"`
	Columns []string   `json:"columns"`
	Values  []*float64 `json:"values"`
}

func encodeRow(r sweep.Row) (string, error) {
	p := rowPayload{
		Sweep:   r.Sweep,
		Index:   r.Index,
		Total:   r.Total,
		Columns: r.Columns,
		Values:  make([]*float64, len(r.Values)),
	}
	for i := range r.Values {
		v := r.Values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		p.Values[i] = &v
	}
	data, err := json.Marshal(p)
	return string(data), err
}

func (h *Hub) Publish(r sweep.Row) {
	content, err := encodeRow(r)
	if err != nil {
		h.logger.WithError(err).Error("encode row")
		return
	}
	h.Broadcast(model.Msg{Type: TypeRow, Content: content})
}

func (h *Hub) Done(name string, rows int) {
	data, _ := json.Marshal(map[string]interface{}{"sweep": name, "rows": rows})
	h.Broadcast(model.Msg{Type: TypeDone, Content: string(data)})
}
