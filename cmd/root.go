package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dDispatch/cmd/echo"
	"github.com/ValentinKolb/dDispatch/cmd/send"
	"github.com/ValentinKolb/dDispatch/cmd/util"
	"github.com/ValentinKolb/dDispatch/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "ddispatch",
		Short: "event driven TCP message dispatcher",
		Long: fmt.Sprintf(`dDispatch (v%s)

A TCP message dispatcher written in Go. A fixed pool of epoll driven
workers keeps outbound connections alive, writes queued buffers and
files in order and reconnects failed destinations.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: initLogging,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dDispatch",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dDispatch v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(send.SendCmd)
	RootCmd.AddCommand(echo.EchoCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// initLogging installs the zerolog backend before any command runs
func initLogging(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlag("log-level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}

	level := viper.GetString("log-level")
	if !common.ValidLogLevel(level) {
		return fmt.Errorf("invalid log level: %s", level)
	}
	common.InitLoggers(level)
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
