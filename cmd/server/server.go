package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ChileCris2011/Walkie-Server/internal/config"
	"github.com/ChileCris2011/Walkie-Server/internal/hub"
	"github.com/ChileCris2011/Walkie-Server/internal/janitor"
	"github.com/ChileCris2011/Walkie-Server/internal/lifecycle"
	"github.com/ChileCris2011/Walkie-Server/internal/media"
	"github.com/ChileCris2011/Walkie-Server/internal/state"
	"github.com/ChileCris2011/Walkie-Server/internal/types"
)

// shutdownNoticeFlush is how long queued server-shutdown notices get to
// drain through the write pumps before connections are closed.
const shutdownNoticeFlush = 250 * time.Millisecond

type Server struct {
	cfg       *config.Config
	logger    zerolog.Logger
	registry  *state.Registry
	directory *state.Directory
	hub       *hub.Hub
	media     *media.Store
	janitor   *janitor.Janitor
	lifecycle *lifecycle.Controller
	router    *gin.Engine
	httpSrv   *http.Server
	startedAt time.Time
}

func NewServer(cfg *config.Config, logger *zerolog.Logger) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logger.With().Str("component", "server").Logger(),
		registry:  state.NewRegistry(),
		directory: state.NewDirectory(),
		startedAt: time.Now(),
	}
	s.hub = hub.New(s.registry, s.directory, logger)
	s.lifecycle = lifecycle.New(cfg.ShutdownGrace, logger)

	if cfg.UploadsEnabled {
		store, err := media.NewStore(cfg.MediaDir, cfg.MediaRetention, logger)
		if err != nil {
			return nil, err
		}
		s.media = store
	}
	s.janitor = janitor.New(s.registry, s.directory, s.media,
		cfg.SweepInterval, cfg.StatsInterval, logger)

	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.routes()

	s.httpSrv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s.router,
	}
	return s, nil
}

func (s *Server) routes() {
	s.router.Use(s.cidMiddleware())
	s.router.Use(s.otelMiddleware())

	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/channels", s.handleChannels)
	s.router.GET("/stats", s.handleStats)
	s.router.GET("/ws", s.handleWebSocket)

	if s.media != nil {
		s.router.POST("/upload-audio", s.handleUpload)
		s.router.Static(media.URLPrefix, s.media.Dir())
	}
}

// Run blocks until the listener fails or the context signals termination,
// then drives the drain sequence.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)
	go s.janitor.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		errc <- s.httpSrv.ListenAndServe()
	}()
	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("server started")

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("termination signal received")
	}

	s.lifecycle.Shutdown(s.notifyShutdown, s.closeAll)
	return nil
}

// notifyShutdown queues the best-effort shutdown notice to every session and
// gives the write pumps a moment to flush it.
func (s *Server) notifyShutdown() {
	s.hub.BroadcastAll(types.Envelope{
		Type:      types.EventServerShutdown,
		Timestamp: types.Now(),
		Message:   "server shutting down",
	})
	time.Sleep(shutdownNoticeFlush)
}

// closeAll closes every live websocket and then the HTTP listener.
func (s *Server) closeAll(ctx context.Context) error {
	for _, conn := range s.registry.All() {
		if conn.Client != nil && conn.Client.Conn != nil {
			_ = conn.Client.Conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleRoot(c *gin.Context) {
	stats := s.hub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"service":     "walkie-server",
		"status":      "ok",
		"uptime":      time.Since(s.startedAt).String(),
		"connections": stats.Connections,
		"channels":    stats.Channels,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.hub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"state":         s.lifecycle.State().String(),
		"connections":   stats.Connections,
		"channels":      stats.Channels,
		"totalMessages": stats.TotalMessages,
	})
}

func (s *Server) handleChannels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": s.directory.Snapshot()})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.janitor.Stats())
}

// handleUpload stores a clip and bridges it into the channel via the
// audio-message broadcast path, returning the clip's public URL.
func (s *Server) handleUpload(c *gin.Context) {
	channelID := c.PostForm("channelId")
	userID := c.PostForm("userId")
	if channelID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channelId and userId are required"})
		return
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is unreadable"})
		return
	}
	defer func() { _ = f.Close() }()

	name, err := s.media.Save(fh.Filename, f)
	if err != nil {
		s.logger.Error().Err(err).Msg("clip store failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store audio"})
		return
	}

	url := s.media.URL(name)
	s.hub.AnnounceAudio(channelID, userID, url)
	s.logger.Info().
		Str("channelID", channelID).
		Str("userID", userID).
		Str("url", url).
		Msg("clip uploaded")
	c.JSON(http.StatusCreated, gin.H{"url": url})
}
