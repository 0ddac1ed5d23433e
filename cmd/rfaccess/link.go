package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gregLibert/rfaccess/pkg/carddata"
	"github.com/gregLibert/rfaccess/pkg/config"
	"github.com/gregLibert/rfaccess/pkg/provisioning"
)

func linkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Render and inspect provisioning links",
	}
	cmd.AddCommand(linkRenderCommand())
	cmd.AddCommand(linkParseCommand())
	return cmd
}

func linkerFromContext(cmd *cobra.Command) (provisioning.Linker, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return provisioning.Linker{}, errors.New("no config found in context")
	}
	return provisioning.NewLinker(cfg.LinkScheme), nil
}

func linkRenderCommand() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "render <subject> <payload-hex>",
		Short: "Print the provisioning link for a payload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			linker, err := linkerFromContext(cmd)
			if err != nil {
				return err
			}
			payload, err := carddata.Decode(args[1])
			if err != nil {
				return err
			}
			if id == "" {
				id = uuid.NewString()
			}
			fmt.Fprintln(cmd.OutOrStdout(), linker.Render(id, args[0], payload))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "credential id (random when empty)")
	return cmd
}

func linkParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <link>",
		Short: "Decode a provisioning link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			linker, err := linkerFromContext(cmd)
			if err != nil {
				return err
			}
			link, err := linker.Parse(args[0])
			if err != nil {
				return err
			}
			describeLink(cmd.OutOrStdout(), link)
			return nil
		},
	}
}

func describeLink(w io.Writer, link provisioning.Link) {
	field := func(name, value string, present bool) {
		if !present {
			value = "(absent)"
		}
		fmt.Fprintf(w, "    - %-8s %s\n", name+":", value)
	}

	fmt.Fprintln(w, "Provisioning Link:")
	field("Subject", link.Subject, link.HasSubject)
	field("ID", link.ID, link.HasID)
	field("Action", link.Action, true)
	payload := fmt.Sprintf("%s (%d bytes)", carddata.Encode(link.Payload), len(link.Payload))
	field("Payload", payload, link.HasPayload)
}
