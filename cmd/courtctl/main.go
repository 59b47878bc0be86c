package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Nahtral/100IN-sub005/internal/config"
	"github.com/Nahtral/100IN-sub005/internal/rpc"
	"github.com/Nahtral/100IN-sub005/internal/session"
)

const (
	chatPageSize    = 30
	messagePageSize = 50
)

func main() {
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "login" {
		cmdLogin(args[1:])
		return
	}

	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: no config found, run `courtctl login` first: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	client := rpc.NewClient(cfg.BaseURL, cfg.AccessToken)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, client, cfg, *jsonFlag)
	case "chats":
		cmdChats(ctx, client, args[1:], *jsonFlag)
	case "messages":
		cmdMessages(ctx, client, args[1:], *jsonFlag)
	case "send":
		cmdSend(ctx, client, args[1:], *jsonFlag)
	case "read":
		cmdRead(ctx, client, args[1:])
	case "create":
		cmdCreate(ctx, client, args[1:], *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: courtctl [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  login --url <url> --token <token> --user <id>   Save backend credentials")
	fmt.Fprintln(os.Stderr, "  status                                          Check backend reachability")
	fmt.Fprintln(os.Stderr, "  chats [--offset N]                              List conversations")
	fmt.Fprintln(os.Stderr, "  messages <chat-id> [--before <RFC3339>]         List messages, newest first")
	fmt.Fprintln(os.Stderr, "  send <chat-id> <text...>                        Send a text message")
	fmt.Fprintln(os.Stderr, "  read <chat-id>                                  Mark a conversation read")
	fmt.Fprintln(os.Stderr, "  create [--name <name>] [--group] <id>...        Create a conversation")
}

func cmdLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	url := fs.String("url", "", "backend base URL")
	token := fs.String("token", "", "access token")
	user := fs.String("user", "", "viewer user id")
	profile := fs.String("profile", session.DefaultProfileName, "default profile name")
	_ = fs.Parse(args)

	cfg := &config.Config{
		BaseURL:        strings.TrimRight(*url, "/"),
		AccessToken:    *token,
		UserID:         *user,
		DefaultProfile: *profile,
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := config.Save(session.ConfigPath(), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config written to %s\n", session.ConfigPath())
}

func cmdStatus(ctx context.Context, client *rpc.Client, cfg *config.Config, jsonOut bool) {
	// A one-row list call is the cheapest authenticated probe the backend has.
	_, err := client.ListChats(ctx, 1, 0)
	reachable := err == nil

	if jsonOut {
		out := map[string]any{
			"base_url":  cfg.BaseURL,
			"user_id":   cfg.UserID,
			"reachable": reachable,
		}
		if err != nil {
			out["error"] = err.Error()
		}
		outputJSON(out)
		if !reachable {
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Backend: %s\n", cfg.BaseURL)
	fmt.Printf("User:    %s\n", cfg.UserID)
	if reachable {
		fmt.Println("Status:  reachable")
	} else {
		fmt.Printf("Status:  unreachable (%v)\n", err)
		os.Exit(1)
	}
}

func cmdChats(ctx context.Context, client *rpc.Client, args []string, jsonOut bool) {
	fs := flag.NewFlagSet("chats", flag.ExitOnError)
	offset := fs.Int("offset", 0, "page offset")
	_ = fs.Parse(args)

	rows, err := client.ListChats(ctx, chatPageSize, *offset)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(rows)
		return
	}
	if len(rows) == 0 {
		fmt.Println("No chats found.")
		return
	}
	for _, r := range rows {
		badge := ""
		if r.UnreadCount > 0 {
			badge = fmt.Sprintf(" (%d unread)", r.UnreadCount)
		}
		fmt.Printf("%-36s %-24s %s%s\n", r.ChatID, r.ChatName, r.LastMessage, badge)
	}
	if len(rows) == chatPageSize {
		fmt.Printf("-- more: courtctl chats --offset %d\n", *offset+len(rows))
	}
}

func cmdMessages(ctx context.Context, client *rpc.Client, args []string, jsonOut bool) {
	fs := flag.NewFlagSet("messages", flag.ExitOnError)
	before := fs.String("before", "", "only messages created before this RFC3339 time")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: courtctl messages <chat-id> [--before <RFC3339>]")
		os.Exit(1)
	}
	chatID := fs.Arg(0)

	var cursor *time.Time
	if *before != "" {
		t, err := time.Parse(time.RFC3339, *before)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: bad --before value: %v\n", err)
			os.Exit(1)
		}
		cursor = &t
	}

	rows, err := client.GetMessages(ctx, chatID, messagePageSize, cursor)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(rows)
		return
	}
	for _, r := range rows {
		sender := r.SenderName
		if sender == "" {
			sender = r.SenderID
		}
		fmt.Printf("[%s] %s: %s\n", r.CreatedAt.Format(time.RFC3339), sender, r.Content)
	}
	if len(rows) == messagePageSize {
		oldest := rows[len(rows)-1].CreatedAt
		fmt.Printf("-- more: courtctl messages %s --before %s\n", chatID, oldest.Format(time.RFC3339))
	}
}

func cmdSend(ctx context.Context, client *rpc.Client, args []string, jsonOut bool) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: courtctl send <chat-id> <text...>")
		os.Exit(1)
	}
	chatID := args[0]
	text := strings.Join(args[1:], " ")

	id, err := client.SendMessage(ctx, chatID, text, "text", "")
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(map[string]string{"message_id": id})
		return
	}
	fmt.Printf("Sent: %s\n", id)
}

func cmdRead(ctx context.Context, client *rpc.Client, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: courtctl read <chat-id>")
		os.Exit(1)
	}
	if err := client.MarkRead(ctx, args[0]); err != nil {
		fatal(err)
	}
	fmt.Println("OK")
}

func cmdCreate(ctx context.Context, client *rpc.Client, args []string, jsonOut bool) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "chat name (groups)")
	group := fs.Bool("group", false, "create a group chat")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: courtctl create [--name <name>] [--group] <participant-id>...")
		os.Exit(1)
	}

	id, err := client.CreateChat(ctx, *name, *group, fs.Args())
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(map[string]string{"chat_id": id})
		return
	}
	fmt.Printf("Created: %s\n", id)
}

func fatal(err error) {
	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		fmt.Fprintf(os.Stderr, "error [%s]: %s\n", rpcErr.Code, rpcErr.Message)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
