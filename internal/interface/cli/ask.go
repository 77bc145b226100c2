package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/neilberkman/thinkchat/internal/core/conversation"
	"github.com/neilberkman/thinkchat/internal/core/models"
	"github.com/neilberkman/thinkchat/internal/core/store"
	"github.com/spf13/cobra"
)

var (
	askSession string
	askNew     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message and print the reply",
	Long: `Send a single message and stream the reply to stdout.

The message joins the most recent session unless --session or --new is
given. Messages starting with /image generate an image and print its
markdown reference.

Examples:
  thinkchat ask "explain goroutines in two sentences"
  thinkchat ask --new "/image a lighthouse at dusk"
  thinkchat ask --session 0ccfddc4 "and in Rust?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askSession, "session", "", "Session id (or unique prefix) to continue")
	askCmd.Flags().BoolVar(&askNew, "new", false, "Start a new session")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	switch {
	case askNew:
		a.controller.NewSession(ctx)
	case askSession != "":
		sess, err := findSession(a.store.Sessions(), askSession)
		if err != nil {
			return err
		}
		if err := a.controller.Activate(ctx, sess.ID); err != nil {
			return err
		}
	}

	res, err := streamTurn(ctx, a, strings.Join(args, " "), os.Stdout)
	if err != nil {
		return err
	}
	if res.Failed() {
		return errors.New(conversation.MsgBanner)
	}
	return nil
}

// streamTurn submits input and copies the reply to w while it streams
func streamTurn(ctx context.Context, a *app, input string, w io.Writer) (conversation.Result, error) {
	events, cancel := a.store.Subscribe()
	defer cancel()

	spinner := NewSpinner(os.Stderr, "Thinking...")
	spinner.Start()
	defer spinner.Stop()

	sid := a.store.ActiveID()
	type outcome struct {
		res conversation.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := a.controller.Submit(ctx, input)
		done <- outcome{res, err}
	}()

	printed := ""
	flush := func() {
		sess, ok := a.store.Session(sid)
		if !ok {
			return
		}
		last, ok := sess.Last()
		if !ok || last.Role != models.RoleModel || !last.IsStreaming || last.Content == "" || last.Content == conversation.MsgGenerating {
			return
		}
		if strings.HasPrefix(last.Content, printed) && last.Content != printed {
			spinner.Stop()
			fmt.Fprint(w, last.Content[len(printed):])
			printed = last.Content
		}
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Kind == store.EventUpdated && ev.SessionID == sid {
				flush()
			}
		case out := <-done:
			spinner.Stop()
			if out.err != nil {
				return out.res, out.err
			}
			final := out.res.Reply.Content
			switch {
			case printed == "":
				fmt.Fprintln(w, final)
			case strings.HasPrefix(final, printed):
				fmt.Fprintln(w, final[len(printed):])
			default:
				fmt.Fprintf(w, "\n%s\n", final)
			}
			return out.res, nil
		}
	}
}
