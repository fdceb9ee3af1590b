package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	router "github.com/dkeye/VoiceMesh/internal/adapters/http"
	"github.com/dkeye/VoiceMesh/internal/adapters/rtc"
	sigclient "github.com/dkeye/VoiceMesh/internal/adapters/signal"
	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/app/orch"
	"github.com/dkeye/VoiceMesh/internal/config"
	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/media"
	"github.com/dkeye/VoiceMesh/internal/ui"
)

const (
	tokenTTL        = 24 * time.Hour
	shutdownTimeout = 5 * time.Second
)

var (
	flagNoAudio bool
	flagNoVideo bool
)

var joinCmd = &cobra.Command{
	Use:   "join <room>",
	Short: "Join a room and stay until interrupted",
	Long: `Join a room and stay until interrupted.

Examples:
  meshcall join standup
  meshcall join standup --name Ana --signal-url wss://relay.example.com/ws
  meshcall join standup --no-video --status-addr 127.0.0.1:9090`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJoin(cmd, domain.RoomID(args[0]))
	},
}

func init() {
	f := joinCmd.Flags()
	f.String("signal-url", "", "signaling relay WebSocket URL")
	f.String("name", "", "display name shown to others")
	f.String("photo", "", "avatar URL shown to others")
	f.String("identity", "", "stable identity (random guest id when empty)")
	f.String("status-addr", "", "address of the local status API, empty to disable")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.StringSlice("ice", nil, "ICE server URLs (stun: or turn:)")
	f.String("turn-user", "", "TURN username")
	f.String("turn-pass", "", "TURN password")
	f.Int("max-peers", 0, "room capacity including yourself")
	f.Duration("stagger", 0, "delay between initiated connections")
	f.Int("buffer-limit", 0, "max early signals kept per peer")
	f.BoolVar(&flagNoAudio, "no-audio", false, "do not send audio")
	f.BoolVar(&flagNoVideo, "no-video", false, "do not send video")
}

// sessionWatch ends the command together with the session.
type sessionWatch struct {
	core.NopObserver
	stop context.CancelFunc
}

// SessionEnded stops the command however the session ended.
func (w sessionWatch) SessionEnded() { w.stop() }

func runJoin(cmd *cobra.Command, room domain.RoomID) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("bad log level %q: %w", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	var token string
	if cfg.IdentitySecret != "" {
		if token, err = sigclient.IdentityToken(cfg.IdentitySecret, cfg.Identity, tokenTTL); err != nil {
			return fmt.Errorf("identity token: %w", err)
		}
	}

	factory, err := rtc.NewFactory(rtc.Configuration(cfg.ICEServers, cfg.TURNUser, cfg.TURNPass), zerolog.WarnLevel)
	if err != nil {
		return err
	}

	// the loop outlives ctx so Leave can still run after an interrupt
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loop := app.NewLoop()
	go loop.Run(loopCtx)

	console := ui.NewConsole(os.Stdout, room)
	chat := router.NewChatLog(router.DefaultChatHistory)

	session := orch.New(orch.Deps{
		Channel: sigclient.NewClient(sigclient.Options{
			URL:        cfg.SignalURL,
			Token:      token,
			PingPeriod: cfg.PingPeriod,
			ReadLimit:  cfg.ReadLimit,
		}),
		Peers:    factory,
		Media:    media.Provider{Audio: !flagNoAudio, Video: !flagNoVideo},
		Analyzer: media.NewLevelMeter(cfg.SpeakingThreshold, cfg.SpeakingInterval),
		Observer: core.Observers{console, chat, sessionWatch{stop: cancel}},
		Loop:     loop,
		Policy:   app.NewMeshPolicy(cfg.MaxParticipants, cfg.InitiatorStagger),
	}, orch.Options{
		Room:        room,
		Identity:    cfg.Identity,
		DisplayName: cfg.DisplayName,
		PhotoURL:    cfg.PhotoURL,
		BufferLimit: cfg.SignalBufferLimit,
		BufferTTL:   cfg.SignalBufferTTL,
	})

	console.Banner(cfg.DisplayName, cfg.SignalURL)
	if err := session.Join(loopCtx); err != nil {
		return err
	}

	var srv *http.Server
	if cfg.StatusAddr != "" {
		srv = &http.Server{
			Addr:    cfg.StatusAddr,
			Handler: router.SetupRouter(cfg.Mode, session, chat),
		}
		go func() {
			log.Info().Str("addr", cfg.StatusAddr).Msg("status API started")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("server error")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Str("room", string(room)).Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := session.Leave(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("leave timed out")
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
	}
	log.Info().Msg("Exited gracefully")
	return nil
}
