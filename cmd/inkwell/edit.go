package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/inkwell"
	"github.com/aretw0/inkwell/pkg/adapters/fs"
	"github.com/aretw0/inkwell/pkg/adapters/lifecycle"
	"github.com/aretw0/inkwell/pkg/core"
)

var editPreview bool

var editCmd = &cobra.Command{
	Use:   "edit [file]",
	Short: "Edit the document in a line-oriented session",
	Long: `Edit starts a session on the scratch slot, or on file when given, and
reads lines from stdin. Session events (saves, reloads, conflicts, updates
from other instances) are printed to stderr as they happen.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		in := bufio.NewReader(newCtxReader(ctx, os.Stdin))
		picker := &fs.PromptPicker{In: in, Out: os.Stdout, Pattern: fs.DefaultPickPattern}

		extra := []inkwell.Option{inkwell.WithPicker(picker)}
		if len(args) == 1 {
			extra = append(extra, inkwell.WithFile(args[0]))
		}
		if editPreview {
			extra = append(extra, inkwell.WithPreview(true))
		}

		rt, err := openRuntime(ctx, cmd, extra...)
		if err != nil {
			fatal("Failed to open session", err)
		}
		// The signal context may already be done; stop with a fresh one.
		defer closeRuntime(context.Background(), rt)

		events := lifecycle.NewSource(rt.Session.Events())
		if err := events.Start(ctx); err != nil {
			fatal("Failed to watch events", err)
		}
		go func() {
			for e := range events.Events() {
				fmt.Fprintf(os.Stderr, "[%s]\n", e)
			}
		}()

		fmt.Fprintf(os.Stderr, "Editing %s. Type :help for commands.\n", rt.Session.Snapshot().Target)
		if err := repl(ctx, rt.Session, in, os.Stdout); err != nil {
			fatal("Edit failed", err)
		}
	},
}

// repl runs until :quit, end of input or ctx cancellation. The picker shares
// in, so all reads happen on this goroutine.
func repl(ctx context.Context, sess *inkwell.Session, in *bufio.Reader, out io.Writer) error {
	for {
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if line == "" && err != nil {
			return nil
		}

		cmd, perr := parseCommand(trimNewline(line))
		if perr != nil {
			fmt.Fprintln(out, perr)
			continue
		}

		switch cmd.act {
		case actQuit:
			return nil
		case actHelp:
			fmt.Fprintln(out, replHelp)
		case actShow:
			fmt.Fprint(out, sess.Text())
		case actPreview:
			fmt.Fprint(out, sess.Preview())
		case actState:
			data, _ := json.MarshalIndent(sess.State(), "", "  ")
			fmt.Fprintln(out, string(data))
		case actAppend:
			sess.Edit(appendLine(sess.Text(), cmd.text))
		case actDispatch:
			if err := sess.Dispatch(ctx, cmd.trigger); err != nil {
				if errors.Is(err, core.ErrCancelled) {
					continue
				}
				slog.Error("command failed", "error", err)
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
		if n := len(s); n > 0 && s[n-1] == '\r' {
			s = s[:n-1]
		}
	}
	return s
}

func init() {
	editCmd.Flags().BoolVarP(&editPreview, "preview", "p", false, "Render markdown for :preview")
	rootCmd.AddCommand(editCmd)
}
