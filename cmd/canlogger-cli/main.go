package main

import (
	"log"
	"os"
	"path"
	"time"

	"github.com/gavinwade12/canLogger/logger"
	"github.com/gavinwade12/canLogger/monitor"
	"github.com/gavinwade12/canLogger/protocols/slcan"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	portSettingName  string = "port"
	baudSettingName  string = "baud"
	fakeLatency             = 20 * time.Millisecond
	shutdownDeadline        = 2 * time.Second
)

var configFile string
var port string
var fake bool
var quiet bool
var verbose bool

func init() {
	cobra.OnInitialize(func() {
		initConfig()
		postInitCommands(rootCmd.Commands())
	})

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.canlogger.yaml)")
	rootCmd.PersistentFlags().StringVar(&port, portSettingName, "", "serial port of the SLCAN adapter. Example: /dev/ttyACM0")
	rootCmd.PersistentFlags().BoolVar(&fake, "fake", false, "use a simulated adapter instead of a serial port")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "quiet all log output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "provide verbose output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

var rootCmd = &cobra.Command{
	Use:           "canlogger-cli",
	Short:         "A CLI for monitoring a CAN bus through an SLCAN (Lawicell) adapter.",
	SilenceErrors: true,
}

func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(path.Base(configFile))
		viper.AddConfigPath(path.Dir(configFile))
	} else {
		home, err := homedir.Dir()
		if err != nil {
			log.Fatalf("finding home directory: %v\n", err)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".canlogger")
		viper.SetConfigType("yaml")
	}

	viper.SetDefault(baudSettingName, slcan.ConnectionBaudRate)
	viper.SetDefault("bus.speed", monitor.DefaultBusSpeed)
	viper.SetDefault("log.level", logger.InfoLevel)
	viper.SetDefault("history.capacity", monitor.DefaultHistoryCapacity)
	viper.SetDefault("console.capacity", monitor.DefaultConsoleCapacity)
	viper.SetDefault("graph.samples", monitor.DefaultGraphSamples)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			if err = viper.SafeWriteConfig(); err != nil {
				log.Fatalf("creating config file: %v\n", err)
			}
		} else {
			log.Fatalf("reading config file: %v\n", err)
		}
	}
}

func postInitCommands(commands []*cobra.Command) {
	for _, cmd := range commands {
		presetRequiredFlags(cmd)
		if cmd.HasSubCommands() {
			postInitCommands(cmd.Commands())
		}
	}
}

func presetRequiredFlags(cmd *cobra.Command) {
	viper.BindPFlags(cmd.Flags())
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if viper.IsSet(f.Name) && viper.GetString(f.Name) != "" {
			cmd.Flags().Set(f.Name, viper.GetString(f.Name))
		}
	})
}

func newLogger(cmd *cobra.Command) *zap.SugaredLogger {
	if quiet {
		return logger.Nop()
	}
	level := viper.GetString("log.level")
	if verbose {
		level = logger.DebugLevel
	}
	return logger.New(cmd.ErrOrStderr(), level)
}

// loadConfig reads the session settings and the configured records.
func loadConfig() (monitor.Config, error) {
	cfg := monitor.Config{
		BusSpeed:        viper.GetInt("bus.speed"),
		HistoryCapacity: viper.GetInt("history.capacity"),
		ConsoleCapacity: viper.GetInt("console.capacity"),
		GraphSamples:    viper.GetInt("graph.samples"),
	}
	for key, dst := range map[string]interface{}{
		"rules":  &cfg.Rules,
		"tx":     &cfg.Commands,
		"macros": &cfg.Macros,
		"graphs": &cfg.Graphs,
	} {
		if err := viper.UnmarshalKey(key, dst); err != nil {
			return cfg, errors.Wrapf(err, "reading %s from config", key)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return cfg, errors.Wrap(err, "validating config")
	}
	return cfg, nil
}

func openConnection(l slcan.Logger) (*slcan.Connection, error) {
	if fake {
		l.Debugf("using simulated adapter")
		return slcan.NewConnection(slcan.NewFakeAdapter(fakeLatency), l), nil
	}
	if port == "" {
		return nil, errors.New("the port setting is required")
	}

	l.Debugf("opening serial port %s", port)
	sp, err := slcan.OpenSerialPort(port, viper.GetInt(baudSettingName))
	if err != nil {
		return nil, err
	}
	return slcan.NewConnection(sp, l), nil
}
