package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/insight-agent/insight/agent"
)

var chatResume string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive analysis session",
	Long: `Start a conversation with the agent. Follow-up questions see the
earlier turns of the session.

Commands:
  /clear    forget the conversation and start a new session
  /session  show the current session
  /tools    list the available tools
  /help     show this list
  /exit     leave`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatResume, "resume", "", "Resume a persisted session by id")
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.start(ctx); err != nil {
		return err
	}

	ag := a.runtime.NewAgent()
	if chatResume != "" {
		if err := ag.Restore(ctx, chatResume); err != nil {
			return fmt.Errorf("resume session: %w", err)
		}
	}

	return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), ag)
}

const chatHelp = `/clear    forget the conversation and start a new session
/session  show the current session
/tools    list the available tools
/help     show this list
/exit     leave`

// runREPL reads one question per line until EOF or /exit.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, ag *agent.Agent) error {
	fmt.Fprintln(out, titleStyle.Render("Insight")+dimStyle.Render("  type /help for commands"))
	if info := ag.SessionInfo(); info.Active {
		fmt.Fprintf(out, "%s %s (%d messages)\n", dimStyle.Render("Resumed session"), info.SessionID, info.MessageCount)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/help":
			fmt.Fprintln(out, chatHelp)
			continue
		case "/clear":
			ag.ClearContext(ctx)
			fmt.Fprintln(out, okStyle.Render("Conversation cleared"))
			continue
		case "/session":
			raw, _ := json.MarshalIndent(ag.SessionInfo(), "", "  ")
			fmt.Fprintln(out, string(raw))
			continue
		case "/tools":
			for _, spec := range ag.AvailableTools() {
				fmt.Fprintf(out, "  %s %s\n", titleStyle.Render(spec.Name), dimStyle.Render(spec.Description))
			}
			continue
		}
		if strings.HasPrefix(line, "/") {
			fmt.Fprintln(out, warnStyle.Render("Unknown command "+line))
			continue
		}

		resp, err := ag.ProcessQuery(ctx, line)
		if err != nil {
			fmt.Fprintln(out, errStyle.Render("Error: "+err.Error()))
			continue
		}
		printResponse(out, resp)
		fmt.Fprintln(out)
	}
}
