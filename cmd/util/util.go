package util

import (
	"github.com/ValentinKolb/dDispatch/lib/dispatcher"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"time"
)

// Logger is shared by all commands
var Logger = logger.GetLogger("cmd")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupEngineFlags adds the dispatcher engine and socket flags to a command
func SetupEngineFlags(cmd *cobra.Command) {
	defaults := dispatcher.DefaultConfig()

	key := "threads"
	cmd.PersistentFlags().Int(key, 0, WrapString("Number of dispatcher workers, 0 uses the number of CPUs minus one"))

	key = "idle-timeout"
	cmd.PersistentFlags().Int(key, int(defaults.IdleTimeout/time.Second), WrapString("Seconds a connection may be idle before the sender is asked to tear it down, 0 disables the timeout"))

	key = "reconnect-interval"
	cmd.PersistentFlags().Int(key, int(defaults.ReconnectInterval/time.Millisecond), WrapString("Minimum time between two reconnect attempts of a worker (in milliseconds)"))

	key = "poll-timeout"
	cmd.PersistentFlags().Int(key, int(defaults.PollTimeout/time.Millisecond), WrapString("Maximum time a worker blocks waiting for events (in milliseconds)"))

	key = "max-events"
	cmd.PersistentFlags().Int(key, defaults.MaxEvents, WrapString("Maximum number of events a worker handles per poll"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, defaults.Socket.NoDelay, WrapString("Whether to enable TCP_NODELAY on outbound connections"))

	key = "tcp-send-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("Size of the socket send buffer (in KB, 0 keeps the system default)"))

	key = "tcp-recv-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("Size of the socket receive buffer (in KB, 0 keeps the system default)"))

	key = "tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval of outbound connections (in seconds, 0 disables keepalive)"))

	key = "tcp-linger"
	cmd.PersistentFlags().Int(key, defaults.Socket.Linger, WrapString("The linger time of outbound connections (in seconds, negative keeps the system default)"))
}

// InitConfig loads .env files and initializes viper with the DDISPATCH_ prefix
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("ddispatch")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetEngineConfig reads the dispatcher configuration from viper
func GetEngineConfig() dispatcher.Config {
	conf := dispatcher.DefaultConfig()
	conf.Threads = viper.GetInt("threads")
	conf.IdleTimeout = time.Duration(viper.GetInt("idle-timeout")) * time.Second
	conf.ReconnectInterval = time.Duration(viper.GetInt("reconnect-interval")) * time.Millisecond
	conf.PollTimeout = time.Duration(viper.GetInt("poll-timeout")) * time.Millisecond
	conf.MaxEvents = viper.GetInt("max-events")
	conf.Socket.NoDelay = viper.GetBool("tcp-nodelay")
	conf.Socket.SendBuffer = viper.GetInt("tcp-send-buffer") * 1024
	conf.Socket.RecvBuffer = viper.GetInt("tcp-recv-buffer") * 1024
	conf.Socket.KeepAliveSec = viper.GetInt("tcp-keepalive")
	conf.Socket.Linger = viper.GetInt("tcp-linger")
	return conf
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
