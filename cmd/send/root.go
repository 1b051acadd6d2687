package send

import (
	"errors"
	"fmt"
	cmdUtil "github.com/ValentinKolb/dDispatch/cmd/util"
	"github.com/ValentinKolb/dDispatch/lib/dispatcher"
	"github.com/ValentinKolb/dDispatch/rpc/common"
	"github.com/ValentinKolb/dDispatch/rpc/frame"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"sync/atomic"
	"time"
)

var (
	sendCmdConfig = &common.SendConfig{}
	SendCmd       = &cobra.Command{
		Use:   "send <host:port>",
		Short: "Send messages or a file to a TCP destination",
		Long: `Send messages or a file to a TCP destination through the dispatcher engine and wait until everything was written.
The configuration can be set via command line flags or environment variables. The format of the environment variables is DDISPATCH_<flag> (e.g. DDISPATCH_QUEUE_CAPACITY=64)`,
		Args:    cobra.ExactArgs(1),
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	cmdUtil.SetupEngineFlags(SendCmd)

	key := "message"
	SendCmd.Flags().StringArrayP(key, "m", nil, cmdUtil.WrapString("Message to send, can be given multiple times"))

	key = "file"
	SendCmd.Flags().String(key, "", cmdUtil.WrapString("File to send after the messages"))

	key = "file-offset"
	SendCmd.Flags().Int64(key, 0, cmdUtil.WrapString("Offset in the file to start sending from"))

	key = "file-length"
	SendCmd.Flags().Int64(key, 0, cmdUtil.WrapString("Number of bytes of the file to send, 0 sends until the end of the file"))

	key = "repeat"
	SendCmd.Flags().Int(key, 1, cmdUtil.WrapString("How many times all messages are sent"))

	key = "frame"
	SendCmd.Flags().Bool(key, false, cmdUtil.WrapString("Prefix every message with a frame header (channel, request id, length) and count framed replies"))

	key = "queue-capacity"
	SendCmd.Flags().Int(key, 64, cmdUtil.WrapString("Maximum number of queued messages of the sender"))

	key = "max-resend"
	SendCmd.Flags().Int(key, 1, cmdUtil.WrapString("How often a message is resent after a failed connection, negative for unlimited"))

	key = "max-reconnect"
	SendCmd.Flags().Int(key, 3, cmdUtil.WrapString("How often a failed connection is retried, negative for unlimited"))

	key = "wait"
	SendCmd.Flags().Int(key, 30, cmdUtil.WrapString("Seconds to wait for queue space and for all messages to be written"))

	key = "metrics"
	SendCmd.Flags().Bool(key, false, cmdUtil.WrapString("Print the engine metrics in Prometheus text format after sending"))
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, args []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	payloads, err := cmd.Flags().GetStringArray("message")
	if err != nil {
		return err
	}

	sendCmdConfig.Destination = args[0]
	sendCmdConfig.Payloads = payloads
	sendCmdConfig.File = viper.GetString("file")
	sendCmdConfig.FileOffset = viper.GetInt64("file-offset")
	sendCmdConfig.FileLength = viper.GetInt64("file-length")
	sendCmdConfig.Repeat = viper.GetInt("repeat")
	sendCmdConfig.Framed = viper.GetBool("frame")
	sendCmdConfig.QueueCapacity = viper.GetInt("queue-capacity")
	sendCmdConfig.MaxResendCount = viper.GetInt("max-resend")
	sendCmdConfig.MaxReconnectCount = viper.GetInt("max-reconnect")
	sendCmdConfig.WaitSecond = viper.GetInt("wait")
	sendCmdConfig.PrintMetrics = viper.GetBool("metrics")
	sendCmdConfig.LogLevel = viper.GetString("log-level")
	sendCmdConfig.Engine = cmdUtil.GetEngineConfig()

	return sendCmdConfig.Validate()
}

// buildMessages creates the messages of all rounds, every push gets its own
// message. The returned file must be closed by the caller once the sender is
// done with it.
func buildMessages(conf *common.SendConfig) ([]*dispatcher.Message, *os.File, error) {
	var (
		f      *os.File
		length int64
	)
	if conf.File != "" {
		var err error
		if f, err = os.Open(conf.File); err != nil {
			return nil, nil, err
		}

		length = conf.FileLength
		if length == 0 {
			stat, err := f.Stat()
			if err != nil {
				_ = f.Close()
				return nil, nil, err
			}
			length = stat.Size() - conf.FileOffset
		}
		if length <= 0 {
			_ = f.Close()
			return nil, nil, fmt.Errorf("file range of %s is empty", conf.File)
		}
	}

	var messages []*dispatcher.Message
	for round := 0; round < max(conf.Repeat, 1); round++ {
		for i, p := range conf.Payloads {
			data := []byte(p)
			if conf.Framed {
				data = frame.Encode(0, uint64(round*len(conf.Payloads)+i), data)
			}
			messages = append(messages, dispatcher.NewBufferMessage(data))
		}
		if f != nil {
			messages = append(messages, dispatcher.NewFileMessage(f, conf.FileOffset, length))
		}
	}
	return messages, f, nil
}

// run sends everything and prints a summary
func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Configuration:")
	fmt.Println(sendCmdConfig.String())

	messages, f, err := buildMessages(sendCmdConfig)
	if err != nil {
		return err
	}
	if f != nil {
		defer f.Close()
	}

	engine, err := dispatcher.NewEngine(sendCmdConfig.Engine)
	if err != nil {
		return err
	}
	defer engine.Close()

	var inner dispatcher.ReplyHandler = &dispatcher.BaseReplyHandler{}
	var frames atomic.Int64
	if sendCmdConfig.Framed {
		inner = frame.NewReplyHandler(func(channel, requestID uint64, payload []byte) dispatcher.Result {
			frames.Add(1)
			cmdUtil.Logger.Debugf("reply frame %d/%d (%d bytes)", channel, requestID, len(payload))
			return dispatcher.ResultContinue
		}, 0)
	}

	total := len(messages)
	t := newTracker(inner, total)

	info, err := sendCmdConfig.ToSenderInfo(t)
	if err != nil {
		return err
	}

	table := engine.UnmanagedTable()
	s, err := table.Open(info)
	if err != nil {
		return err
	}
	defer table.Release(s)

	start := time.Now()
	deadline := time.After(sendCmdConfig.Wait())

	for _, m := range messages {
		if !s.Push(m, sendCmdConfig.Wait()) {
			table.Close(s)
			return fmt.Errorf("%s: queue stayed full for %s", s, sendCmdConfig.Wait())
		}
	}

	sendErr := waitForCompletion(s, t, deadline, total)
	elapsed := time.Since(start)

	// half-close, replies are read until the peer closes as well
	table.Close(s)
	if !waitForShutdown(s, time.Second) {
		cmdUtil.Logger.Warningf("%s did not shut down in time", s)
	}

	printSummary(s, t, frames.Load(), elapsed)

	if sendCmdConfig.PrintMetrics {
		fmt.Println()
		engine.WriteMetrics(os.Stdout)
	}

	if sendErr == nil && s.Stats().MessagesSent == 0 {
		sendErr = errors.New("no message was written")
	}
	return sendErr
}

// waitForCompletion blocks until every message was written, the sender gave up or the deadline passed
func waitForCompletion(s *dispatcher.Sender, t *tracker, deadline <-chan time.Time, total int) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return nil
		case <-deadline:
			return fmt.Errorf("%s: only %d of %d messages were written within %s",
				s, t.completed.Load(), total, sendCmdConfig.Wait())
		case <-ticker.C:
			if s.State() == dispatcher.StateShutdown {
				return fmt.Errorf("%s: gave up after %d connect failures", s, t.failures.Load())
			}
		}
	}
}

// waitForShutdown polls until s was removed from its worker
func waitForShutdown(s *dispatcher.Sender, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.State() == dispatcher.StateShutdown {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func printSummary(s *dispatcher.Sender, t *tracker, frames int64, elapsed time.Duration) {
	st := s.Stats()

	fmt.Println()
	fmt.Println("Result:")
	fmt.Printf("  %-22s: %d\n", "Messages Sent", st.MessagesSent)
	fmt.Printf("  %-22s: %d\n", "Messages Dropped", st.MessagesDropped)
	fmt.Printf("  %-22s: %d\n", "Bytes Sent", st.BytesSent)
	fmt.Printf("  %-22s: %d\n", "Bytes Received", t.replyBytes.Load())
	if sendCmdConfig.Framed {
		fmt.Printf("  %-22s: %d\n", "Frames Received", frames)
	}
	fmt.Printf("  %-22s: %d\n", "Reconnects", st.Reconnects)
	fmt.Printf("  %-22s: %d\n", "Connect Failures", st.ConnectFailures)
	fmt.Printf("  %-22s: %s\n", "Duration", elapsed.Round(time.Microsecond))
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Printf("  %-22s: %.2f MB/s\n", "Throughput", float64(st.BytesSent)/secs/1024/1024)
	}
}
