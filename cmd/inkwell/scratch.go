package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/inkwell"
)

var scratchCmd = &cobra.Command{
	Use:   "scratch",
	Short: "Read or replace the scratch slot",
}

var scratchCatCmd = &cobra.Command{
	Use:   "cat",
	Short: "Print the scratch slot",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		rt, err := openRuntime(ctx, cmd, inkwell.WithFile(""), inkwell.WithNotifierBackend("none"))
		if err != nil {
			fatal("Failed to open session", err)
		}
		defer closeRuntime(ctx, rt)

		fmt.Print(rt.Session.Text())
	},
}

var scratchWriteCmd = &cobra.Command{
	Use:   "write [text]",
	Short: "Replace the scratch slot with text, or stdin when text is - or absent",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var text string
		if len(args) == 0 || args[0] == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fatal("Failed to read stdin", err)
			}
			text = string(data)
		} else {
			text = args[0]
		}

		ctx := context.Background()
		// Bypass a configured file so the save lands in the slot.
		rt, err := openRuntime(ctx, cmd, inkwell.WithFile(""))
		if err != nil {
			fatal("Failed to open session", err)
		}
		defer closeRuntime(ctx, rt)

		rt.Session.Edit(text)
		if err := rt.Session.Save(ctx); err != nil {
			fatal("Failed to save scratch", err)
		}
		fmt.Printf("Saved %d bytes to scratch.\n", len(text))
	},
}

func init() {
	scratchCmd.AddCommand(scratchCatCmd, scratchWriteCmd)
	rootCmd.AddCommand(scratchCmd)
}
