package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/otaku1603/turnnet"
	"github.com/otaku1603/turnnet/client"
	"github.com/otaku1603/turnnet/internal/config"
	"github.com/otaku1603/turnnet/internal/logging"
)

type connectOptions struct {
	envFile   string
	host      string
	port      int
	match     bool
	autoReady bool
	reconnect bool
}

func connectCmd() *cobra.Command {
	opts := &connectOptions{}

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect, log in and print battle messages",
		Long: `Connect to the battle server and stay connected until interrupted.

With --match the client asks for an opponent after a successful login;
with --ready it reports ready as soon as a match is found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.envFile, "env", ".env", "Path to a .env file")
	cmd.Flags().StringVar(&opts.host, "host", "", "Server host (overrides TURN_SERVER_HOST)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Server port (overrides TURN_TCP_PORT)")
	cmd.Flags().BoolVar(&opts.match, "match", false, "Send a match request after login")
	cmd.Flags().BoolVar(&opts.autoReady, "ready", false, "Report ready when a match is found")
	cmd.Flags().BoolVar(&opts.reconnect, "reconnect", false, "Reconnect after the connection is lost")

	return cmd
}

func runConnect(ctx context.Context, out io.Writer, opts *connectOptions) error {
	env, err := config.LoadConfig(opts.envFile)
	if err != nil {
		return err
	}
	if opts.host != "" {
		env.ServerHost = opts.host
	}
	if opts.port != 0 {
		env.TCPPort = opts.port
	}
	if err := env.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(env.LogLevel, env.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	cfg, err := client.ConfigFromEnv(env, logger)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(cfg)
	wireEvents(ctx, c, out, logger, opts)

	if env.MetricsAddr != "" {
		srv := serveMetrics(env.MetricsAddr, c, logger)
		defer srv.Close()
	}

	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Disconnect()

	err = c.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// wireEvents prints every battle message and applies the flag-driven
// behaviour. All handlers run inside Run.
func wireEvents(ctx context.Context, c *client.Client, out io.Writer, logger *slog.Logger, opts *connectOptions) {
	c.OnConnected(func() {
		fmt.Fprintf(out, "connected (session %s)\n", c.SessionID())
	})
	c.OnDisconnected(func(cause error) {
		if cause != nil {
			fmt.Fprintf(out, "connection lost: %v\n", cause)
		} else {
			fmt.Fprintln(out, "disconnected")
		}
		if opts.reconnect && ctx.Err() == nil {
			c.ScheduleReconnect()
		}
	})

	c.OnLogin(func(resp *turnnet.LoginResponse) {
		fmt.Fprintf(out, "login success=%t %s\n", resp.Success, resp.Message)
		if resp.Success && opts.match {
			if err := c.SendMatchRequest(ctx); err != nil {
				logger.Warn("match request failed", "err", err)
			}
		}
	})
	c.OnMatchSuccess(func(m *turnnet.MatchSuccessResponse) {
		opponent := "unknown"
		if m.Opponent != nil {
			opponent = fmt.Sprintf("%s (elo %d)", m.Opponent.Nickname, m.Opponent.EloRating)
		}
		fmt.Fprintf(out, "matched: battle %s against %s\n", m.BattleID, opponent)
		if opts.autoReady {
			if err := c.SendBattleReady(ctx, m.BattleID); err != nil {
				logger.Warn("ready failed", "err", err)
			}
		}
	})
	c.OnBattleStart(func(s *turnnet.BattleStartResponse) {
		fmt.Fprintf(out, "battle %s started, round %d, actor %d\n", s.BattleID, s.CurrentRound, s.CurrentActorUserID)
	})
	c.OnBattleUpdate(func(u *turnnet.BattleUpdateResponse) {
		fmt.Fprintf(out, "round %d: %d used %q on %d, damage %d heal %d, next %d\n",
			u.CurrentRound, u.ActorUserID, u.SkillName, u.TargetUserID, u.Damage, u.Heal, u.NextActorUserID)
	})
	c.OnBattleEnd(func(e *turnnet.BattleEndResponse) {
		fmt.Fprintf(out, "battle %s ended: winner %d (%s)\n", e.BattleID, e.WinnerID, e.EndReason)
	})
	c.OnBattleRejoin(func(r *turnnet.BattleRejoinResponse) {
		fmt.Fprintf(out, "rejoin success=%t battle %s round %d\n", r.Success, r.BattleID, r.CurrentRound)
	})
}

func serveMetrics(addr string, c *client.Client, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Metrics().Registry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}
