package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gavinwade12/canLogger/monitor"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const macroPollInterval = 10 * time.Millisecond

var sendLine string
var sendID string
var sendData string
var sendRepeat int
var sendPeriod int
var sendOpenBus bool

func init() {
	sendCmd.Flags().StringVar(&sendLine, "line", "", "raw adapter line to send, without the carriage return. Example: V")
	sendCmd.Flags().StringVar(&sendID, "id", "", "frame id in hex. Ids longer than 3 digits are sent as extended frames")
	sendCmd.Flags().StringVar(&sendData, "data", "", "frame data in hex. Example: \"02 01 0C\"")
	sendCmd.Flags().IntVar(&sendRepeat, "repeat", 1, "how many times to send")
	sendCmd.Flags().IntVar(&sendPeriod, "period", 100, "milliseconds between repeated sends")
	sendCmd.Flags().BoolVar(&sendOpenBus, "open", false, "open the bus before sending")

	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:          "send",
	Short:        "Send a frame or adapter command, optionally repeated.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		line := sendLine
		if line == "" {
			if sendID == "" {
				return errors.New("either --line or --id is required")
			}
			c := monitor.SavedCommand{ID: sendID, Data: sendData}
			if err := c.Normalize(); err != nil {
				return err
			}
			line = c.Line()
		}

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

		session, err := monitor.NewSession(conn, cfg, monitor.WithLogger(l))
		if err != nil {
			return errors.Wrap(err, "creating session")
		}
		session.Open()
		defer session.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if sendOpenBus {
			if err := session.OpenBus(ctx, cfg.BusSpeed); err != nil {
				return errors.Wrap(err, "opening bus")
			}
		}

		if sendRepeat <= 1 {
			if err := session.Send(ctx, line); err != nil {
				return err
			}
		} else {
			handle := session.RunMacro(line, sendRepeat, time.Duration(sendPeriod)*time.Millisecond)
			waitForMacro(ctx, session, handle)
		}

		if !quiet {
			for _, c := range session.ConsoleLines() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
		}
		return nil
	},
}

// waitForMacro blocks until the macro has no sends left or ctx is done, in
// which case the macro is cancelled.
func waitForMacro(ctx context.Context, session *monitor.Session, handle string) {
	t := time.NewTicker(macroPollInterval)
	defer t.Stop()

	for session.MacroRunning(handle) {
		select {
		case <-ctx.Done():
			session.CancelMacro(handle)
			return
		case <-t.C:
		}
	}
}
