package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomchat/client"
	"github.com/vovakirdan/roomchat/internal/proto"
)

func newChatCmd() *cobra.Command {
	var (
		server string
		roomID string
		author string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a chat room from the terminal",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runChat(server, roomID, author)
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&roomID, "room", "", "room id (a new room is created when omitted)")
	cmd.Flags().StringVar(&author, "author", "", "display name (remembered across sessions)")

	return cmd
}

func runChat(server, roomID, author string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prefs := client.NewPrefs("")
	if author == "" {
		name, err := prefs.Author()
		if err != nil {
			fmt.Fprintln(os.Stderr, "warning: could not persist display name:", err)
		}
		author = name
	} else if err := prefs.SetAuthor(author); err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not persist display name:", err)
	}

	api := client.NewAPI(server)

	if roomID == "" {
		id, err := api.CreateRoom(ctx)
		if err != nil {
			return err
		}
		roomID = id
		fmt.Printf("Created room %s\n", roomID)
	}

	view := client.NewView()

	printMessage := func(m proto.Message) {
		fmt.Printf("[%s] %s: %s\n", m.Timestamp, m.Author, m.Content)
	}

	channel := client.NewChannel(server, roomID, author, client.ChannelOptions{})
	channel.OnMessage(func(frame proto.Frame) {
		switch frame.Type {
		case proto.FrameTypeMessage:
			msg := proto.Message{
				ID:        frame.MessageID,
				Content:   frame.Content,
				Author:    frame.Author,
				Timestamp: frame.Timestamp,
				RoomID:    roomID,
			}
			if view.Append(msg) {
				printMessage(msg)
			}
		case proto.FrameTypeError:
			fmt.Fprintln(os.Stderr, "server error:", frame.Message)
		}
	})
	channel.OnState(func(s client.State) {
		fmt.Fprintf(os.Stderr, "-- %s --\n", s)
	})

	// History comes over the request path; the live channel only pushes
	// messages created after it opened. Dedup-by-id reconciles the two.
	history, err := api.FetchHistory(ctx, roomID)
	if err != nil {
		return err
	}
	view.SetHistory(history)
	for _, m := range view.Messages() {
		printMessage(m)
	}

	channel.Connect()
	defer channel.Disconnect()

	fmt.Printf("Joined room %s as %s. Type messages and press Enter. Ctrl+C to exit.\n", roomID, author)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			if channel.Send(text) {
				continue
			}

			// Channel down: fall back to the request path. The broadcast
			// copy may still arrive after a reconnect; Append drops it.
			msg, err := api.SubmitMessage(ctx, roomID, text, author)
			if err != nil {
				fmt.Fprintln(os.Stderr, "send failed:", err)
				continue
			}
			if view.Append(msg) {
				printMessage(msg)
			}
		}
	}
}
