package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/gavinwade12/canLogger/api"
	"github.com/gavinwade12/canLogger/monitor"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const graphSampleInterval = 250 * time.Millisecond

var listenAddr string
var printFrames bool
var logFrames bool

func init() {
	monitorCmd.Flags().StringVar(&listenAddr, "listen", "", "serve the HTTP API on this port or host:port. Example: 8080")
	monitorCmd.Flags().BoolVar(&printFrames, "print", true, "print every decoded frame")
	monitorCmd.Flags().BoolVar(&logFrames, "record", true, "record decoded frames in the history log")

	rootCmd.AddCommand(monitorCmd)
}

var monitorCmd = &cobra.Command{
	Use:          "monitor",
	Short:        "Open the bus and decode the frames seen on it, running the configured rules.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l := newLogger(cmd)
		defer l.Sync()

		conn, err := openConnection(l)
		if err != nil {
			return errors.Wrap(err, "creating new connection")
		}
		defer conn.Close()

		opts := []monitor.Option{monitor.WithLogger(l)}
		if printFrames && !quiet {
			out := cmd.OutOrStdout()
			opts = append(opts, monitor.WithObserver(func(m monitor.CachedMessage) {
				fmt.Fprintf(out, "%-8s %-23s %d\n", m.ID, m.Data, m.Count)
			}))
		}
		session, err := monitor.NewSession(conn, cfg, opts...)
		if err != nil {
			return errors.Wrap(err, "creating session")
		}
		session.Open()
		defer session.Close()
		session.SetLogging(logFrames)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		runErr := make(chan error, 1)
		go func() { runErr <- session.Run(ctx, conn) }()

		l.Infof("opening bus at %d kbit/s", cfg.BusSpeed)
		if err := session.OpenBus(ctx, cfg.BusSpeed); err != nil {
			return errors.Wrap(err, "opening bus")
		}

		var server *api.Server
		if listenAddr != "" {
			server = api.NewServer(listenAddress(listenAddr), api.NewHandler(session, l).InitRoutes())
			go func() {
				l.Infof("serving API on %s", server.Addr())
				if err := server.ListenAndServe(); err != nil {
					l.Errorf("%v", err)
				}
			}()
		}

		ticker := time.NewTicker(graphSampleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				session.SampleGraphs()
			case err := <-runErr:
				if err != nil {
					return errors.Wrap(err, "reading from adapter")
				}
				return nil
			case <-ctx.Done():
				return shutdown(session, server)
			}
		}
	},
}

// listenAddress accepts a bare port ("8080") as well as host:port.
func listenAddress(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort("", addr)
	}
	return addr
}

// shutdown takes the adapter off the bus and stops the API server.
func shutdown(session *monitor.Session, server *api.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer cancel()

	err := session.CloseBus(ctx)
	if server != nil {
		if serr := server.Shutdown(ctx); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}
