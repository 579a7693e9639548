package cli

import (
	"net/http"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/retention"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/server"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sweeps over a websocket at /ws, streaming every finished row",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMaterial()
		if err != nil {
			return err
		}
		hub := server.NewHub(cfg.Server.History, log.WithField("component", "server"))
		d := driver(cmd)
		s := server.NewServer(stringOpt(cmd, "addr", cfg.Server.Addr), upgrader, hub, retention.FromMaterial(m), d)
		sw := cfg.Sweep
		s.Defaults = server.Request{
			Sweep:    "analytical",
			TMin:     sw.TMin,
			TMax:     sw.TMax,
			NT:       sw.NT,
			DPAMin:   sw.DPAMin,
			DPAMax:   sw.DPAMax,
			NDPA:     sw.NDPA,
			Duration: sw.Duration,
		}
		return s.Serve(cmd.Context())
	},
}
