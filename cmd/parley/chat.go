package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"parley/internal/orchestrator"
	"parley/internal/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

// runChat drives the REPL: plain lines are prompts, colon-prefixed lines are
// local commands.
func runChat() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	if w := a.watchPersonas(ctx); w != nil {
		defer w.Stop()
	}

	if _, ok := a.engine.ActiveSession(); !ok {
		a.engine.CreateSession(types.Settings{}, "", false)
	}

	fmt.Println("parley - type a message, :help for commands, :quit to exit")
	printBalance(a.engine.Balance())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			if quit := chatCommand(a, line); quit {
				return nil
			}
			continue
		}

		submit(ctx, a, line)
	}
}

func submit(ctx context.Context, a *app, prompt string) {
	active, ok := a.engine.ActiveSession()
	if !ok {
		fmt.Println("no active session; use :new")
		return
	}

	sess, econ, err := a.engine.SubmitMessage(ctx, active.ID, prompt, nil)
	switch {
	case errors.Is(err, orchestrator.ErrInsufficientBalance):
		fmt.Printf("Not enough points (balance %d). Points reset daily.\n", econ.Balance)
		return
	case errors.Is(err, orchestrator.ErrStreamOpen):
		fmt.Println("Still answering the previous message.")
		return
	case err != nil:
		fmt.Println("Error:", err)
		return
	}

	last := sess.Messages[len(sess.Messages)-1]
	printMessage(last)
	fmt.Printf("[%d points left]\n", econ.Balance)
}

func printMessage(m types.Message) {
	switch c := m.Content.(type) {
	case types.Narrative:
		fmt.Println(c.Text)
	case types.Artifact:
		fmt.Printf("[%s artifact]\n", c.Kind)
		keys := make([]string, 0, len(c.Fields))
		for k := range c.Fields {
			if k != "kind" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s: %v\n", k, c.Fields[k])
		}
	}
	for _, s := range m.Sources {
		fmt.Printf("  source: %s (%s)\n", s.Title, s.URI)
	}
}

// chatCommand handles a colon command; returns true to quit.
func chatCommand(a *app, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case ":quit", ":q", ":exit":
		return true

	case ":help":
		fmt.Print(`:new [persona-id]   new persistent session
:temp [persona-id]  new ephemeral session (never saved)
:sessions           list sessions
:select <id>        switch session
:delete <id>        delete session
:mode <deep|sci|search> <on|off>
:attach <path>      attach a text file as session knowledge
:balance            show point balance
:personas           list personas
:quit               exit
`)

	case ":new", ":temp":
		personaID := ""
		if len(args) > 0 {
			personaID = args[0]
		}
		settings := types.Settings{}
		if active, ok := a.engine.ActiveSession(); ok {
			settings = active.Settings
		}
		sess := a.engine.CreateSession(settings, personaID, cmd == ":temp")
		fmt.Println("now in session", sess.ID)

	case ":sessions":
		printSessions(a.engine)

	case ":select":
		if len(args) != 1 {
			fmt.Println("usage: :select <id>")
			break
		}
		sess, err := a.engine.SelectSession(args[0])
		if err != nil {
			fmt.Println("Error:", err)
			break
		}
		fmt.Printf("now in session %s (%s)\n", sess.ID, sess.Title)

	case ":delete":
		if len(args) != 1 {
			fmt.Println("usage: :delete <id>")
			break
		}
		if err := a.engine.DeleteSession(args[0]); err != nil {
			fmt.Println("Error:", err)
		}

	case ":mode":
		setMode(a, args)

	case ":attach":
		if len(args) != 1 {
			fmt.Println("usage: :attach <path>")
			break
		}
		attach(a, args[0])

	case ":balance":
		printBalance(a.engine.Balance())

	case ":personas":
		for _, p := range a.engine.Personas() {
			fmt.Printf("%s %s (%s)\n", p.Icon, p.Name, p.ID)
		}

	default:
		fmt.Println("unknown command; :help")
	}
	return false
}

func setMode(a *app, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: :mode <deep|sci|search> <on|off>")
		return
	}
	active, ok := a.engine.ActiveSession()
	if !ok {
		fmt.Println("no active session")
		return
	}

	on := args[1] == "on"
	settings := active.Settings
	switch args[0] {
	case "deep":
		settings.DeepThinking = on
	case "sci":
		settings.ScientificMode = on
	case "search":
		settings.SearchEnabled = on
	default:
		fmt.Println("unknown mode", args[0])
		return
	}
	if _, err := a.engine.UpdateSettings(active.ID, settings); err != nil {
		fmt.Println("Error:", err)
	}
}

func attach(a *app, path string) {
	active, ok := a.engine.ActiveSession()
	if !ok {
		fmt.Println("no active session")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	file := types.KnowledgeFile{Name: baseName(path), Text: string(data)}
	if _, err := a.engine.AddKnowledge(active.ID, file); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("attached", file.Name)
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func printBalance(state types.EconomyState) {
	fmt.Printf("points: %d (resets daily; last reset %s)\n", state.Balance, state.LastResetDay)
}

func printSessions(e *orchestrator.Engine) {
	sessions := e.Sessions()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID > sessions[j].ID })

	activeID := ""
	if active, ok := e.ActiveSession(); ok {
		activeID = active.ID
	}
	for _, s := range sessions {
		marker := " "
		if s.ID == activeID {
			marker = "*"
		}
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s %s  %s  (%d messages)\n", marker, s.ID, title, len(s.Messages))
	}
	if activeID == types.EphemeralSessionID {
		fmt.Println("* (ephemeral session)")
	}
}
