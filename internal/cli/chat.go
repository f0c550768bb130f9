package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/soradev/hearth/pkg/client"
)

// runChat drives the interactive REPL. One invocation is one tab: it mints
// one session id and keeps it for the program's lifetime.
func runChat(ctx context.Context) error {
	tab := client.NewTabState()
	tab.SetCharacter(characterName)
	coord := client.New(serverURL, tab)

	if err := coord.Connect(ctx); err != nil {
		return fmt.Errorf("cannot reach server at %s: %w", serverURL, err)
	}

	fmt.Printf("connected to %s (session %s)\n", serverURL, tab.SessionID())
	printStarter(ctx, coord, false)

	fmt.Println(`type a message, or /switch <name>, /retry-starter, /clear, /quit`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/clear":
			if err := coord.ClearSession(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "clear failed: %v\n", err)
				continue
			}
			fmt.Println("history cleared")
		case line == "/retry-starter":
			printStarter(ctx, coord, true)
		case strings.HasPrefix(line, "/switch "):
			name := strings.TrimSpace(strings.TrimPrefix(line, "/switch "))
			if name == "" {
				fmt.Fprintln(os.Stderr, "usage: /switch <character>")
				continue
			}
			tab.SetCharacter(name)
			fmt.Printf("now talking to %s\n", name)
			printStarter(ctx, coord, false)
		default:
			sendMessage(ctx, coord, line)
		}
	}
}

func sendMessage(ctx context.Context, coord *client.Coordinator, message string) {
	var turn *client.Turn
	var err error
	if blockingMode {
		turn, err = coord.Send(ctx, message)
	} else {
		turn, err = coord.SendStream(ctx, message)
	}

	switch {
	case errors.Is(err, client.ErrCancelled), errors.Is(err, client.ErrStaleResponse):
		// Intentional abort or superseded request: nothing to show.
		return
	case err != nil:
		// Transient notice, no retry.
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		return
	}

	name := turn.CharacterName
	if name == "" {
		name = "assistant"
	}
	fmt.Printf("%s: %s\n", name, turn.Response)
	if turn.Emotion != "" && turn.Emotion != "neutral" {
		fmt.Printf("  (%s, %s)\n", turn.Emotion, turn.Sentiment)
	}
}

func printStarter(ctx context.Context, coord *client.Coordinator, force bool) {
	starter, err := coord.FetchStarter(ctx, force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "starter unavailable: %v\n", err)
		return
	}
	if starter.SkipStarter || starter.Starter == "" {
		return
	}
	fmt.Println(starter.Starter)
}
