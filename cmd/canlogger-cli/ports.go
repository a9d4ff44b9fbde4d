package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/gavinwade12/canLogger/protocols/slcan"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	portsCmd.AddCommand(listPortsCmd)
	portsCmd.AddCommand(selectPortCmd)

	rootCmd.AddCommand(portsCmd)
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Find the serial port the adapter is attached to",
}

var listPortsCmd = &cobra.Command{
	Use:   "list",
	Short: "List the serial ports on the host. The configured one is marked with *",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := slcan.AvailablePorts()
		if err != nil {
			return err
		}
		return printPorts(cmd.OutOrStdout(), ports)
	},
}

func printPorts(w io.Writer, ports []slcan.SerialPort) error {
	if len(ports) == 0 {
		_, err := fmt.Fprintln(w, "no serial ports found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tINDEX\tPORT\tVID:PID\tPRODUCT")
	for i, p := range ports {
		mark := ""
		if p.PortName == port {
			mark = "*"
		}
		usb := "-"
		if p.IsUSB {
			usb = p.VendorID + ":" + p.ProductID
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", mark, i, p.PortName, usb, p.Product)
	}
	return tw.Flush()
}

// pickPort resolves choice, either an index into ports or a port name.
func pickPort(ports []slcan.SerialPort, choice string) (string, error) {
	choice = strings.TrimSpace(choice)
	for _, p := range ports {
		if p.PortName == choice {
			return p.PortName, nil
		}
	}

	i, err := strconv.Atoi(choice)
	if err != nil {
		return "", errors.Errorf("%q is neither a listed port nor an index", choice)
	}
	if i < 0 || i >= len(ports) {
		return "", errors.Errorf("index %d out of range, %d ports listed", i, len(ports))
	}
	return ports[i].PortName, nil
}

var selectPortCmd = &cobra.Command{
	Use:          "set [index|name]",
	Short:        "Store the adapter's port in the config file. Without an argument the ports are listed and one is asked for",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := slcan.AvailablePorts()
		if err != nil {
			return err
		}

		var choice string
		if len(args) == 1 {
			choice = args[0]
		} else {
			if err := printPorts(cmd.OutOrStdout(), ports); err != nil {
				return err
			}
			if len(ports) == 0 {
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), "adapter port: ")
			choice, err = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && choice == "" {
				return errors.Wrap(err, "reading choice")
			}
		}

		name, err := pickPort(ports, choice)
		if err != nil {
			return err
		}
		viper.Set(portSettingName, name)
		if err := viper.WriteConfig(); err != nil {
			return errors.Wrap(err, "writing config")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "port set to %s\n", name)
		return nil
	},
}
