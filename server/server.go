// Package server 通过 websocket 向前端推送参数扫描的进度和结果
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/kinetics"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/retention"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/sweep"
)

var (
	ErrBusy       = errors.New("a sweep is already running")
	ErrNotRunning = errors.New("no sweep is running")
)

// 前端发起的扫描，温度线性分布，损伤速率 (dpa/fpy) 等比分布
type Request struct {
	Sweep    string  `json:"sweep"`
	TMin     float64 `json:"t_min"`
	TMax     float64 `json:"t_max"`
	NT       int     `json:"n_t"`
	DPAMin   float64 `json:"dpa_min"`
	DPAMax   float64 `json:"dpa_max"`
	NDPA     int     `json:"n_dpa"`
	Duration float64 `json:"duration"` // s，仅 transient_retention
	Trap     string  `json:"trap"`     // 仅 chartime，缺省取第一个损伤陷阱
}

type Server struct {
	addr     string
	upgrader websocket.Upgrader
	hub      *Hub
	model    *retention.Model
	driver   sweep.Driver
	// start 消息中未给出的字段取这里的值
	Defaults Request
	logger   *log.Entry

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewServer(addr string, upgrader websocket.Upgrader, hub *Hub, m *retention.Model, d *sweep.Driver) *Server {
	return &Server{
		addr:     addr,
		upgrader: upgrader,
		hub:      hub,
		model:    m,
		driver:   *d,
		Defaults: Request{Sweep: "analytical", TMin: 400, TMax: 1300, NT: 50, DPAMin: 1e-3, DPAMax: 1e3, NDPA: 50},
		logger:   hub.logger,
	}
}

// ctx 取消时正在运行的扫描随之停止
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.serveWs(ctx, w, r)
	})
	return mux
}

func (s *Server) Serve(ctx context.Context) error {
	go s.hub.Run(ctx)
	srv := &http.Server{Addr: s.addr, Handler: s.Handler(ctx)}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	s.logger.WithField("addr", s.addr).Info("listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// serveWs handles websocket requests from the peer.
func (s *Server) serveWs(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("upgrade failed")
		return
	}
	defer conn.Close()
	c, ok := s.hub.join()
	if !ok {
		return
	}
	defer s.hub.leave(c)
	go s.writePump(conn, c)

	for {
		var msg model.Msg
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.WithError(err).Warn("read failed")
			}
			return
		}
		s.handleRequest(ctx, c, msg)
	}
}

func (s *Server) writePump(conn *websocket.Conn, c *client) {
	for m := range c.send {
		if err := conn.WriteJSON(&m); err != nil {
			s.logger.WithError(err).Warn("write failed")
			conn.Close()
			return
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, c *client, msg model.Msg) {
	switch msg.Type {
	case TypeEnv:
		env, _ := json.Marshal(map[string]interface{}{
			"species":   s.model.Names(),
			"thickness": s.model.Thickness,
			"defaults":  s.Defaults,
		})
		s.hub.Reply(c, model.Msg{Type: TypeEnvSet, Content: string(env)})
	case TypeStart:
		req := s.Defaults
		if msg.Content != "" {
			if err := json.Unmarshal([]byte(msg.Content), &req); err != nil {
				s.replyError(c, fmt.Errorf("bad request: %w", err))
				return
			}
		}
		if err := s.start(ctx, req); err != nil {
			s.replyError(c, err)
		}
	case TypeStop:
		if err := s.stop(); err != nil {
			s.replyError(c, err)
		}
	default:
		s.replyError(c, fmt.Errorf("no such type %q", msg.Type))
	}
}

func (s *Server) replyError(c *client, err error) {
	s.hub.Reply(c, model.Msg{Type: TypeError, Content: err.Error()})
}

type sweepFunc func(ctx context.Context, d *sweep.Driver) error

func (s *Server) plan(req Request) (sweepFunc, error) {
	if req.NT < 1 || req.NDPA < 1 {
		return nil, errors.New("grid needs at least one temperature and one damage rate")
	}
	if req.DPAMin <= 0 || req.DPAMax <= 0 {
		return nil, errors.New("damage rates must be positive on a geometric grid")
	}
	temps := sweep.Linspace(req.TMin, req.TMax, req.NT)
	dpas := sweep.Geomspace(req.DPAMin, req.DPAMax, req.NDPA)

	switch req.Sweep {
	case "", "analytical":
		return func(ctx context.Context, d *sweep.Driver) error {
			_, err := d.Analytical(ctx, s.model, temps, dpas)
			return err
		}, nil
	case "transient_retention":
		if req.Duration <= 0 {
			return nil, errors.New("transient_retention needs a positive duration")
		}
		return func(ctx context.Context, d *sweep.Driver) error {
			_, err := d.TransientRetention(ctx, s.model, temps, dpas, req.Duration)
			return err
		}, nil
	case "chartime":
		p, err := s.trapParams(req.Trap)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, d *sweep.Driver) error {
			_, err := d.CharacteristicTimes(ctx, p, temps, dpas)
			return err
		}, nil
	}
	return nil, fmt.Errorf("unknown sweep %q", req.Sweep)
}

func (s *Server) trapParams(name string) (kinetics.Params, error) {
	for _, sp := range s.model.Species {
		if sp.Intrinsic() {
			continue
		}
		if name == "" || sp.Name == name {
			return kinetics.ParamsOf(sp), nil
		}
	}
	return kinetics.Params{}, fmt.Errorf("no damaged trap %q", name)
}

func (s *Server) start(ctx context.Context, req Request) error {
	run, err := s.plan(req)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrBusy
	}
	sctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	content, _ := json.Marshal(req)
	s.hub.Broadcast(model.Msg{Type: TypeStarted, Content: string(content)})

	go func() {
		defer cancel()
		d := s.driver
		d.Publisher = s.hub
		err := run(sctx, &d)

		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		switch {
		case errors.Is(err, context.Canceled):
			s.hub.Broadcast(model.Msg{Type: TypeStopped, Content: "stopped"})
		case err != nil:
			s.hub.Broadcast(model.Msg{Type: TypeError, Content: err.Error()})
		}
	}()
	return nil
}

func (s *Server) stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return ErrNotRunning
	}
	s.cancel()
	return nil
}
