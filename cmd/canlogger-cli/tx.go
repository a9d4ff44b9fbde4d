package main

import (
	"fmt"
	"io"

	"github.com/gavinwade12/canLogger/monitor"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const txSettingName = "tx"

var txName string
var txID string
var txData string
var txPeriod int

func init() {
	addTxCmd.Flags().StringVar(&txName, "name", "", "name of the saved command")
	addTxCmd.Flags().StringVar(&txID, "id", "", "frame id in hex")
	addTxCmd.Flags().StringVar(&txData, "data", "", "frame data in hex")
	addTxCmd.Flags().IntVar(&txPeriod, "period", 100, "milliseconds between sends when run periodically")

	txCmd.AddCommand(addTxCmd)
	txCmd.AddCommand(listTxCmd)
	rootCmd.AddCommand(txCmd)
}

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Manage the saved frames that can be sent periodically",
}

func configuredCommands() ([]monitor.SavedCommand, error) {
	var cmds []monitor.SavedCommand
	if err := viper.UnmarshalKey(txSettingName, &cmds); err != nil {
		return nil, errors.Wrap(err, "getting saved commands")
	}
	return cmds, nil
}

var addTxCmd = &cobra.Command{
	Use:          "add",
	Short:        "Adds a saved command to the config",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if txID == "" {
			return errors.New("no id set")
		}

		cmds, err := configuredCommands()
		if err != nil {
			return err
		}

		c := monitor.SavedCommand{Name: txName, ID: txID, Data: txData, PeriodMs: txPeriod}
		if err := c.Normalize(); err != nil {
			return err
		}
		cmds = append(cmds, c)

		viper.Set(txSettingName, cmds)
		if err := viper.WriteConfig(); err != nil {
			return errors.Wrap(err, "writing config")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s: %s every %dms\n", c.Key, c.Line(), c.PeriodMs)
		return nil
	},
}

var listTxCmd = &cobra.Command{
	Use:   "list",
	Short: "List the saved commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmds, err := configuredCommands()
		if err != nil {
			return err
		}
		listCommands(cmd.OutOrStdout(), cmds)
		return nil
	},
}

func listCommands(w io.Writer, cmds []monitor.SavedCommand) {
	for i, c := range cmds {
		fmt.Fprintf(w, "[%d]:\tKey: %s\n\tName: %s\n\tLine: %s\n\tPeriod: %dms\n",
			i, c.Key, c.Name, c.Line(), c.PeriodMs)
	}
}
