// ABOUTME: Command-line client for chat-gateway
// ABOUTME: Account, room and friend commands plus an interactive chat over WebSocket

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `chat-cli %s

Usage: chat-cli <command> [flags] [args]

Commands:
  register <username>    Create the account given by -account
  rooms                  List joined chatrooms
  create <name>          Create a chatroom
  join <id>              Join a chatroom
  leave <id>             Leave a chatroom
  friend <account>       Add a friend
  chat <id>              Chat in a room (stdin lines are sent)
  dm <account>           Chat privately with a friend

Flags (all commands):
  -server    gateway URL (env CHAT_SERVER, default http://localhost:8080)
  -account   account name (env CHAT_ACCOUNT)
  -password  password (env CHAT_PASSWORD)
`, version)
}

// options are the connection flags shared by every command.
type options struct {
	server   string
	account  string
	password string
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseFlags(name string, args []string) (*options, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	opts := &options{}
	fs.StringVar(&opts.server, "server", envOr("CHAT_SERVER", "http://localhost:8080"), "gateway URL")
	fs.StringVar(&opts.account, "account", os.Getenv("CHAT_ACCOUNT"), "account name")
	fs.StringVar(&opts.password, "password", os.Getenv("CHAT_PASSWORD"), "password")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if opts.account == "" || opts.password == "" {
		return nil, nil, errors.New("-account and -password are required (or set CHAT_ACCOUNT and CHAT_PASSWORD)")
	}
	return opts, fs.Args(), nil
}

func run(ctx context.Context, cmd string, args []string, in io.Reader, out io.Writer) error {
	switch cmd {
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	case "version":
		fmt.Fprintf(out, "chat-cli %s\n", version)
		return nil
	}

	opts, rest, err := parseFlags(cmd, args)
	if err != nil {
		return err
	}

	c := newAPIClient(opts.server, "")

	if cmd == "register" {
		if len(rest) != 1 {
			return errors.New("usage: chat-cli register <username>")
		}
		if err := c.register(ctx, opts.account, opts.password, rest[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s registered %s\n", color.GreenString("✓"), opts.account)
		return nil
	}

	login, err := c.login(ctx, opts.account, opts.password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.token = login.Token

	switch cmd {
	case "rooms":
		rooms, err := c.listRooms(ctx)
		if err != nil {
			return err
		}
		if len(rooms) == 0 {
			fmt.Fprintln(out, "no chatrooms")
		}
		for _, r := range rooms {
			fmt.Fprintf(out, "%s  %s  (created by %s)\n", color.CyanString("%5d", r.ID), r.Name, r.CreatedBy)
		}
		return nil

	case "create":
		if len(rest) != 1 {
			return errors.New("usage: chat-cli create <name>")
		}
		res, err := c.createRoom(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s created chatroom %d\n", color.GreenString("✓"), res.ChatroomID)
		return nil

	case "join", "leave":
		id, err := roomArg(cmd, rest)
		if err != nil {
			return err
		}
		res, err := c.roomAction(ctx, cmd, id)
		if err != nil {
			return err
		}
		printResult(out, res)
		return nil

	case "friend":
		if len(rest) != 1 {
			return errors.New("usage: chat-cli friend <account>")
		}
		if err := c.addFriend(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s is now a friend\n", color.GreenString("✓"), rest[0])
		return nil

	case "chat":
		id, err := roomArg(cmd, rest)
		if err != nil {
			return err
		}
		url, err := c.socketURL("rooms", uint64(id))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "connected to room %d as %s, type to send, Ctrl-C to quit\n", id, login.Username)
		return runChat(ctx, url, in, out)

	case "dm":
		if len(rest) != 1 {
			return errors.New("usage: chat-cli dm <account>")
		}
		sid, err := c.openSession(ctx, rest[0])
		if err != nil {
			return err
		}
		url, err := c.socketURL("sessions", sid)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "private session with %s, type to send, Ctrl-C to quit\n", rest[0])
		return runChat(ctx, url, in, out)
	}

	return fmt.Errorf("unknown command %q", cmd)
}

func roomArg(cmd string, rest []string) (uint32, error) {
	if len(rest) != 1 {
		return 0, fmt.Errorf("usage: chat-cli %s <id>", cmd)
	}
	id, err := strconv.ParseUint(rest[0], 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid chatroom id %q", rest[0])
	}
	return uint32(id), nil
}

func printResult(w io.Writer, res *roomResult) {
	mark := color.GreenString("✓")
	if !res.Success {
		mark = color.YellowString("!")
	}
	fmt.Fprintf(w, "%s %s\n", mark, res.Message)
}
