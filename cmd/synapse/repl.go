package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/synapse-run/synapse/internal/agent"
	"github.com/synapse-run/synapse/internal/message"
	"github.com/synapse-run/synapse/internal/session"
)

func buildReplCmd() *cobra.Command {
	var sessionIDFlag string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive terminal conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runRepl(cmd.Context(), configPath, sessionIDFlag)
		},
	}
	cmd.Flags().StringVar(&sessionIDFlag, "session", "", "Resume an existing session by ID instead of starting a new one")
	return cmd
}

func runRepl(ctx context.Context, configPath, sessionIDFlag string) error {
	rt, err := buildRuntime(ctx, configPath, "text")
	if err != nil {
		return err
	}
	defer rt.shutdown()

	sess, history, err := resolveReplSession(ctx, rt, sessionIDFlag)
	if err != nil {
		return err
	}

	fmt.Printf("Session %s (%s/%s). Type /quit to exit, /help for commands.\n", sess.ID, sess.Provider, sess.Model)

	interactive := isInteractive()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, cmdErr := handleReplCommand(ctx, rt, &sess, &history, line)
			if cmdErr != nil {
				fmt.Println("error:", cmdErr)
			}
			if done {
				return nil
			}
			continue
		}

		if storeErr := rt.store.AddMessage(ctx, session.NewStoredMessage(sess.ID, message.RoleUser, line)); storeErr != nil {
			fmt.Println("warning: failed to persist message:", storeErr)
		}
		history = append(history, message.NewUser(line))

		systemPrompt := ""
		if sess.SystemPrompt != nil {
			systemPrompt = *sess.SystemPrompt
		}
		messages := rt.agent.BuildMessages(systemPrompt, history)

		streamReply(ctx, rt, &sess, &history, messages)
	}

	return scanner.Err()
}

// streamReply drives the agent's streaming interface, printing text deltas
// as they arrive and persisting the completed assistant turn.
func streamReply(ctx context.Context, rt *runtime, sess *session.Session, history *[]message.Message, messages []message.Message) {
	var reply strings.Builder
	for ev := range rt.agent.StreamOwned(ctx, messages) {
		switch ev.Kind {
		case agent.EventTextDelta:
			fmt.Print(ev.Text)
			reply.WriteString(ev.Text)
		case agent.EventError:
			fmt.Println("\nerror:", ev.Err)
			return
		}
	}
	fmt.Println()

	content := reply.String()
	*history = append(*history, message.NewAssistant(content))
	if storeErr := rt.store.AddMessage(ctx, session.NewStoredMessage(sess.ID, message.RoleAssistant, content)); storeErr != nil {
		fmt.Println("warning: failed to persist reply:", storeErr)
	}
	if storeErr := rt.store.TouchSession(ctx, sess.ID); storeErr != nil {
		fmt.Println("warning: failed to update session:", storeErr)
	}
}

// handleReplCommand processes a local "/" command. The returned bool
// reports whether the REPL loop should exit.
func handleReplCommand(ctx context.Context, rt *runtime, sess *session.Session, history *[]message.Message, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd := fields[0]
	arg := strings.TrimSpace(strings.TrimPrefix(line, cmd))

	switch cmd {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Println("/new [name]       start a new session")
		fmt.Println("/sessions         list sessions")
		fmt.Println("/switch <id>      switch to an existing session")
		fmt.Println("/system <prompt>  set this session's system prompt")
		fmt.Println("/quit             exit")
		return false, nil

	case "/new":
		created := session.New(sess.Provider, sess.Model)
		if arg != "" {
			created = created.WithName(arg)
		}
		if err := rt.store.CreateSession(ctx, created); err != nil {
			return false, err
		}
		*sess = created
		*history = nil
		fmt.Printf("Started session %s\n", sess.ID)
		return false, nil

	case "/sessions":
		summaries, err := rt.store.ListSessions(ctx)
		if err != nil {
			return false, err
		}
		for _, s := range summaries {
			name := ""
			if s.Name != nil {
				name = *s.Name
			}
			fmt.Printf("%s  %-20s  %s/%s  %d messages\n", s.ID, name, s.Provider, s.Model, s.MessageCount)
		}
		return false, nil

	case "/switch":
		if arg == "" {
			return false, fmt.Errorf("usage: /switch <session-id>")
		}
		id, parseErr := uuid.Parse(arg)
		if parseErr != nil {
			return false, fmt.Errorf("invalid session ID: %w", parseErr)
		}
		found, err := rt.store.GetSession(ctx, id)
		if err != nil {
			return false, err
		}
		if found == nil {
			return false, fmt.Errorf("no session found with ID %s", id)
		}
		*sess = *found
		loaded, err := rt.store.GetMessages(ctx, sess.ID)
		if err != nil {
			return false, err
		}
		*history = make([]message.Message, 0, len(loaded))
		for _, m := range loaded {
			*history = append(*history, message.Message{Role: m.Role, Content: m.Content})
		}
		fmt.Printf("Switched to session %s\n", sess.ID)
		return false, nil

	case "/system":
		if arg == "" {
			return false, fmt.Errorf("usage: /system <prompt>")
		}
		*sess = sess.WithSystemPrompt(arg)
		if err := rt.store.UpdateSession(ctx, *sess); err != nil {
			return false, err
		}
		fmt.Println("System prompt updated.")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s", cmd)
	}
}

// resolveReplSession honors --session when given, loading that session and
// its stored messages; otherwise it creates and stores a fresh session.
func resolveReplSession(ctx context.Context, rt *runtime, sessionIDFlag string) (session.Session, []message.Message, error) {
	if sessionIDFlag != "" {
		id, err := uuid.Parse(sessionIDFlag)
		if err != nil {
			return session.Session{}, nil, fmt.Errorf("invalid --session value: %w", err)
		}
		found, storeErr := rt.store.GetSession(ctx, id)
		if storeErr != nil {
			return session.Session{}, nil, storeErr
		}
		if found == nil {
			return session.Session{}, nil, fmt.Errorf("no session found with ID %s", id)
		}
		stored, storeErr := rt.store.GetMessages(ctx, id)
		if storeErr != nil {
			return session.Session{}, nil, storeErr
		}
		history := make([]message.Message, 0, len(stored))
		for _, m := range stored {
			history = append(history, message.Message{Role: m.Role, Content: m.Content})
		}
		return *found, history, nil
	}

	sess := session.New(rt.cfg.Provider, rt.cfg.Model)
	if err := rt.store.CreateSession(ctx, sess); err != nil {
		return session.Session{}, nil, err
	}
	return sess, nil, nil
}

// isInteractive reports whether stdin is an interactive terminal, used to
// decide whether to print the "> " prompt.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
