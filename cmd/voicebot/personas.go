package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexiqai/voicebot/internal/config"
	"github.com/lexiqai/voicebot/internal/persona"
)

func newPersonasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the personas PERSONA can select",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			catalogue := persona.Builtin()
			if cfg.PersonaFile != "" {
				if catalogue, err = persona.LoadFile(cfg.PersonaFile); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, name := range catalogue.Names() {
				marker := " "
				if name == cfg.Persona {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, name)
			}
			return nil
		},
	}
}
