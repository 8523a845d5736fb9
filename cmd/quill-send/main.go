// quill-send submits a text modification request to a running background
// listener and prints the result. Text is taken from --text or, when omitted,
// from stdin, so it composes with clipboard utilities and shell pipes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/quill/pkg/ipc"
)

var (
	host           string
	port           int
	timeout        time.Duration
	operation      string
	text           string
	userID         string
	source         string
	targetLanguage string
)

var rootCmd = &cobra.Command{
	Use:   "quill-send",
	Short: "Submit text modification requests to the quill background listener",
	RunE:  runSend,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the background listener is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ipc.NewClient(host, port, timeout)
		if !client.Available() {
			return fmt.Errorf("listener unavailable at %s:%d", host, port)
		}
		fmt.Printf("listener available at %s:%d\n", host, port)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", "127.0.0.1", "listener host")
	rootCmd.PersistentFlags().IntVar(&port, "port", 8001, "listener port")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "response timeout")

	rootCmd.Flags().StringVarP(&operation, "operation", "o", "improve", "modification operation (summarize, improve, translate, correct, expand, simplify, analyze)")
	rootCmd.Flags().StringVarP(&text, "text", "t", "", "text to modify (reads stdin when omitted)")
	rootCmd.Flags().StringVarP(&userID, "user", "u", "", "user id recorded with the modification")
	rootCmd.Flags().StringVar(&source, "source", "quill-send", "source application tag")
	rootCmd.Flags().StringVar(&targetLanguage, "target-language", "", "target language for the translate operation")

	rootCmd.AddCommand(statusCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	input := text
	if input == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		input = strings.TrimSpace(string(raw))
	}
	if input == "" {
		return errors.New("no text provided; use --text or pipe input on stdin")
	}

	env := ipc.Envelope{
		SourceApplication: source,
		Text:              input,
		Operation:         operation,
		UserID:            userID,
	}
	if targetLanguage != "" {
		env.Options = map[string]any{"target_language": targetLanguage}
	}

	client := ipc.NewClient(host, port, timeout)
	resp, err := client.Send(context.Background(), env)
	if err != nil {
		switch {
		case errors.Is(err, ipc.ErrListenerUnavailable):
			return fmt.Errorf("listener unavailable at %s:%d; is the server running?", host, port)
		case errors.Is(err, ipc.ErrTimeout):
			return fmt.Errorf("timed out after %s awaiting response", timeout)
		default:
			return err
		}
	}

	if !resp.Success {
		retry := ""
		if resp.IsRetryable {
			retry = " (retryable)"
		}
		return fmt.Errorf("%s: %s%s", resp.ErrorCode, resp.Message, retry)
	}

	fmt.Println(resp.ModifiedText)
	fmt.Fprintf(os.Stderr, "operation=%s model=%s processing_ms=%d correlation_id=%s\n",
		resp.Operation, resp.ModelUsed, resp.ProcessingTimeMs, resp.CorrelationID)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
