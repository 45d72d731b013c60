// Package main provides an interactive chat client for the travel assistant.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/travel/internal/domain"
)

var (
	addr        string
	sessionID   string
	passengerID string
)

var rootCmd = &cobra.Command{
	Use:   "travel-cli",
	Short: "Chat with the travel assistant",
	RunE:  runChat,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Connects to the assistant over WebSocket and reads messages from stdin.
Sensitive actions pause until you type /approve or /deny <reason>.`,
	RunE: runChat,
}

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Print sample questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := NewClient(addr)
		if err != nil {
			return err
		}
		defer client.Close()

		if _, err := client.SendHello(sessionID, passengerID); err != nil {
			return err
		}
		for _, q := range client.examples {
			fmt.Println(q)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "ws://localhost:8080/ws", "WebSocket server address")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "resume an existing session")
	rootCmd.PersistentFlags().StringVar(&passengerID, "passenger", "", "passenger id for a new session")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(examplesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connecting to %s...\n", addr)

	client, err := NewClient(addr)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Close()

	ack, err := client.SendHello(sessionID, passengerID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Session %s (passenger %s)\n", ack.SessionID, ack.PassengerID)
	fmt.Fprintln(out, "Commands: /examples, /approve, /deny <reason>, /quit")

	turns := make(chan struct{})
	go client.ReadMessages(out, turns)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Fprint(out, "> ")
		var input string
		select {
		case <-interrupt:
			fmt.Fprintln(out, "\nInterrupted")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			input = strings.TrimSpace(line)
		}
		if input == "" {
			continue
		}

		var sendErr error
		switch {
		case input == "/quit":
			fmt.Fprintln(out, "Bye!")
			return nil
		case input == "/examples":
			for _, q := range client.examples {
				fmt.Fprintf(out, "  %s\n", q)
			}
			continue
		case input == "/approve":
			sendErr = client.SendDecision(domain.DecisionApprove, "")
		case input == "/deny" || strings.HasPrefix(input, "/deny "):
			sendErr = client.SendDecision(domain.DecisionDeny, strings.TrimSpace(strings.TrimPrefix(input, "/deny")))
		default:
			sendErr = client.SendMessage(input)
		}
		if sendErr != nil {
			return fmt.Errorf("send: %w", sendErr)
		}

		select {
		case _, ok := <-turns:
			if !ok {
				return nil
			}
		case <-interrupt:
			fmt.Fprintln(out, "\nInterrupted")
			return nil
		}
	}
}
