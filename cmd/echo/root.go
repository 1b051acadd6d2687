package echo

import (
	"context"
	"fmt"
	cmdUtil "github.com/ValentinKolb/dDispatch/cmd/util"
	"github.com/ValentinKolb/dDispatch/rpc/common"
	"github.com/ValentinKolb/dDispatch/rpc/echo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
)

var (
	echoCmdConfig = &common.EchoConfig{}
	EchoCmd       = &cobra.Command{
		Use:   "echo",
		Short: "Start a TCP echo server",
		Long: `Start a TCP server that writes every received byte back (or discards it in sink mode). Useful as a local destination for the send command.
The configuration can be set via command line flags or environment variables. The format of the environment variables is DDISPATCH_<flag> (e.g. DDISPATCH_ENDPOINT=0.0.0.0:9000)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "endpoint"
	EchoCmd.Flags().String(key, "127.0.0.1:9000", cmdUtil.WrapString("The address on which the server will listen"))

	key = "sink"
	EchoCmd.Flags().Bool(key, false, cmdUtil.WrapString("Discard received data instead of echoing it"))

	key = "buffer-size"
	EchoCmd.Flags().Int(key, 64, cmdUtil.WrapString("Read buffer size per connection (in KB)"))

	key = "timeout"
	EchoCmd.Flags().Int(key, 0, cmdUtil.WrapString("Close connections idle for longer than this many seconds, 0 disables the timeout"))
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	echoCmdConfig.Endpoint = viper.GetString("endpoint")
	echoCmdConfig.Sink = viper.GetBool("sink")
	echoCmdConfig.BufferSizeKB = viper.GetInt("buffer-size")
	echoCmdConfig.TimeoutSecond = viper.GetInt("timeout")
	echoCmdConfig.LogLevel = viper.GetString("log-level")

	if echoCmdConfig.BufferSizeKB <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", echoCmdConfig.BufferSizeKB)
	}
	return nil
}

// run serves until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := echo.NewServer(echoCmdConfig.ToServerConfig())
	if err := srv.Listen(); err != nil {
		return err
	}

	fmt.Println("Configuration:")
	fmt.Println(echoCmdConfig.String())
	fmt.Printf("Listening on %s\n", srv.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	var err error
	select {
	case <-ctx.Done():
		cmdUtil.Logger.Infof("shutting down echo server")
	case err = <-errCh:
	}

	if cerr := srv.Close(); err == nil {
		err = cerr
	}

	st := srv.Stats()
	fmt.Printf("served %d connections, received %d bytes, sent %d bytes\n",
		st.Connections, st.BytesReceived, st.BytesSent)
	return err
}
