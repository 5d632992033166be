package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/harunnryd/tyson/internal/agent"
	"github.com/harunnryd/tyson/internal/session"

	"github.com/google/shlex"
)

type repl struct {
	components *components
	reader     *bufio.Reader
	sessionID  string
	streaming  bool
}

func newREPL(c *components) *repl {
	meta, err := c.Store.CreateSession("CLI Session")
	sessionID := meta.ID
	if err != nil {
		// The session still self-registers on the first transcript save.
		sessionID = session.NewID()
		fmt.Println(errorStyle.Render("warning: failed to register session: " + err.Error()))
	}

	return &repl{
		components: c,
		reader:     bufio.NewReader(os.Stdin),
		sessionID:  sessionID,
		streaming:  c.Agent.Streaming(),
	}
}

func (r *repl) start(ctx context.Context) error {
	fmt.Println(bannerStyle.Render("Tyson") + "  session " + r.sessionID)
	fmt.Println("Type 'help' for commands, 'exit' to quit.")

	r.installHooks()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		default:
		}

		fmt.Print(promptStyle.Render("you> "))
		line, err := r.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println()
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		done, err := r.handleLine(ctx, line)
		if err != nil {
			fmt.Println(errorStyle.Render("error: " + err.Error()))
		}
		if done {
			return nil
		}
	}
}

func (r *repl) installHooks() {
	hooks := agent.Hooks{
		OnToolCall: func(name, args string) {
			fmt.Println(toolStyle.Render(fmt.Sprintf("⚙ calling %s %s", name, truncateString(args, 80))))
		},
		OnToolResult: func(name, result string, err error) {
			if err != nil {
				fmt.Println(toolStyle.Render(fmt.Sprintf("⚙ %s failed: %v", name, err)))
				return
			}
			fmt.Println(toolStyle.Render(fmt.Sprintf("⚙ %s → %s", name, truncateString(result, 80))))
		},
	}
	if r.streaming {
		hooks.OnDelta = func(fragment string) {
			fmt.Print(fragment)
		}
	}
	r.components.Agent.SetStreaming(r.streaming)
	r.components.Agent.SetHooks(hooks)
}

// handleLine routes one input line: a command word or a chat message.
// The second return reports whether the REPL should exit.
func (r *repl) handleLine(ctx context.Context, line string) (bool, error) {
	words, err := shlex.Split(line)
	if err != nil || len(words) == 0 {
		// Unbalanced quotes and the like: treat the raw line as chat.
		return false, r.chat(ctx, line)
	}

	switch strings.ToLower(words[0]) {
	case "exit", "quit":
		fmt.Println("Bye.")
		return true, nil

	case "help":
		r.printHelp()
		return false, nil

	case "clear":
		r.components.Agent.Reset()
		if err := r.components.Store.ResetSession(r.sessionID); err != nil {
			return false, err
		}
		fmt.Println("Conversation cleared.")
		return false, nil

	case "history":
		fmt.Println(formatHistory(r.components.Agent.Transcript().Snapshot()))
		return false, nil

	case "stream":
		r.streaming = !r.streaming
		r.installHooks()
		fmt.Printf("Streaming %s.\n", onOff(r.streaming))
		return false, nil

	case "save":
		if len(words) < 2 {
			return false, fmt.Errorf("usage: save <file>")
		}
		if err := r.components.Agent.Transcript().SaveFile(words[1]); err != nil {
			return false, err
		}
		fmt.Printf("History saved to %s\n", words[1])
		return false, nil

	case "load":
		if len(words) < 2 {
			return false, fmt.Errorf("usage: load <file>")
		}
		if err := r.components.Agent.Transcript().LoadFile(words[1]); err != nil {
			return false, err
		}
		fmt.Printf("History loaded from %s (%d entries)\n", words[1], r.components.Agent.Transcript().Len())
		return false, nil

	default:
		return false, r.chat(ctx, line)
	}
}

func (r *repl) chat(ctx context.Context, message string) error {
	start := time.Now()

	answer, err := r.components.Agent.Chat(ctx, message)
	r.persist()

	if err != nil {
		// A partial answer can accompany the iteration-bound error.
		if answer != "" {
			fmt.Println(answer)
		}
		return err
	}

	if r.streaming {
		// Fragments were already printed by the delta hook.
		fmt.Println()
	} else {
		fmt.Println(answer)
	}
	fmt.Println(toolStyle.Render(fmt.Sprintf("(%.1fs)", time.Since(start).Seconds())))
	return nil
}

func (r *repl) persist() {
	if err := r.components.Store.SaveTranscript(r.sessionID, r.components.Agent.Transcript()); err != nil {
		fmt.Println(errorStyle.Render("warning: failed to persist session: " + err.Error()))
	}
}

func (r *repl) printHelp() {
	fmt.Println(`Commands:
  exit, quit     leave the session
  clear          reset the conversation
  history        show the conversation so far
  stream         toggle streaming output
  save <file>    write history to a JSON file
  load <file>    replace history from a JSON file
  help           this message

Anything else is sent to the model.`)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
