package main

import (
	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/csast/internal/session"
	"github.com/stupiduntilnot/csast/internal/tui"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, rt, err := a.build("chat")
			if err != nil {
				return err
			}
			defer rt.Close()
			return tui.Run(cmd.Context(), rt.orch, session.New(), appTitle)
		},
	}
}
