package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/csast/internal/chat"
	"github.com/stupiduntilnot/csast/internal/session"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		promptOnly bool
		raw        bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			_, rt, err := a.build("ask")
			if err != nil {
				return err
			}
			defer rt.Close()

			st := session.New()
			out := cmd.OutOrStdout()
			if promptOnly {
				_, err := fmt.Fprintln(out, rt.orch.PromptFor(st, question))
				return err
			}

			reply, err := rt.orch.Submit(cmd.Context(), st, question)
			if errors.Is(err, chat.ErrEmptyInput) {
				return nil
			}
			if err != nil {
				return err
			}
			if !raw {
				if rendered, rerr := glamour.Render(reply, "dark"); rerr == nil {
					reply = rendered
				}
			}
			_, err = fmt.Fprintln(out, strings.TrimRight(reply, "\n"))
			return err
		},
	}
	cmd.Flags().BoolVar(&promptOnly, "prompt-only", false, "print the assembled prompt without calling the model")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the reply without markdown rendering")
	return cmd
}
