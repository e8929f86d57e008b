package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agentoven/chatwidget/internal/buttons"
	"github.com/agentoven/chatwidget/internal/config"
	"github.com/agentoven/chatwidget/internal/embed"
	"github.com/agentoven/chatwidget/internal/engine"
	"github.com/agentoven/chatwidget/internal/knowledge"
	"github.com/agentoven/chatwidget/internal/personality"
	"github.com/agentoven/chatwidget/internal/resolver"
	"github.com/agentoven/chatwidget/pkg/models"

	"github.com/spf13/cobra"
)

// errInvalidWidget is returned by validate when the file has problems.
var errInvalidWidget = errors.New("widget configuration is invalid")

func newRootCmd() *cobra.Command {
	var widgetFile, engineName string

	root := &cobra.Command{
		Use:          "widgetctl",
		Short:        "Inspect chat widget configurations",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&widgetFile, "config", "c", "widget.yaml", "widget YAML configuration")
	root.PersistentFlags().StringVar(&engineName, "engine", engine.LocalName, "response engine")

	load := func() (models.WidgetConfig, error) {
		return config.LoadWidget(widgetFile)
	}

	// ── reply ────────────────────────────────────────────────
	var explain bool
	replyCmd := &cobra.Command{
		Use:   "reply <message>",
		Short: "Print the bot reply and triggered buttons for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			eng, err := engine.NewRegistry().Get(engineName)
			if err != nil {
				return err
			}

			utterance := strings.Join(args, " ")
			res, kerr := engine.Reply(context.Background(), eng, cfg, utterance)
			if res == nil {
				return kerr
			}
			out := cmd.OutOrStdout()
			if kerr != nil {
				fmt.Fprintf(out, "! knowledge base: %s\n", knowledge.UserMessage(kerr))
			}
			fmt.Fprintln(out, res.Reply)
			for _, b := range res.Buttons {
				fmt.Fprintf(out, "[%s] %s\n", b.EffectiveStyle(), b.Text)
			}
			if explain {
				k, _ := knowledge.Compile(cfg.KnowledgeBase)
				_, rule := resolver.ResolveRule(utterance, k, cfg.Business)
				fmt.Fprintf(out, "rule: %s\nbase: %s\n", rule, res.Base)
			}
			return nil
		},
	}
	replyCmd.Flags().BoolVar(&explain, "explain", false, "also print the matched rule and unstyled reply")

	// ── welcome ──────────────────────────────────────────────
	welcomeCmd := &cobra.Command{
		Use:   "welcome",
		Short: "Print the welcome message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", cfg.Title(), personality.Welcome(cfg.Business.Name, cfg.Personality))
			return nil
		},
	}

	// ── embed ────────────────────────────────────────────────
	embedCmd := &cobra.Command{
		Use:   "embed",
		Short: "Print the embed snippet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), embed.Render(cfg.Business.Name, cfg.Personality))
			return nil
		},
	}

	// ── validate ─────────────────────────────────────────────
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check personality, knowledge base and buttons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ReadWidget(widgetFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ok := true
			if cfg.KnowledgeBase.Type == "" {
				cfg.KnowledgeBase.Type = models.KnowledgeText
			}

			if cfg.Personality != "" && !cfg.Personality.Valid() {
				fmt.Fprintf(out, "✗ personality %q is not one of %v\n", cfg.Personality, models.Personalities)
				ok = false
			}
			k, kerr := knowledge.Compile(cfg.KnowledgeBase)
			st := knowledge.Status(k, kerr)
			switch {
			case kerr != nil:
				fmt.Fprintf(out, "✗ knowledge base: %s\n", st.Error)
				ok = false
			case st.Available:
				fmt.Fprintf(out, "✓ knowledge base: %s (%d chunks, %d keys)\n", st.Type, st.Chunks, len(st.Keys))
			default:
				fmt.Fprintln(out, "- knowledge base: empty")
			}
			ids := make(map[string]bool, len(cfg.ResponseButtons))
			for i, b := range cfg.ResponseButtons {
				if err := buttons.Validate(b); err != nil {
					fmt.Fprintf(out, "✗ button %d (%q): %v\n", i, b.Text, err)
					ok = false
				}
				if b.ID != "" && ids[b.ID] {
					fmt.Fprintf(out, "✗ button %d (%q): %v: %s\n", i, b.Text, buttons.ErrDuplicateID, b.ID)
					ok = false
				}
				ids[b.ID] = true
			}
			if !ok {
				return errInvalidWidget
			}
			fmt.Fprintln(out, "✓ configuration is valid")
			return nil
		},
	}

	// ── personalities ────────────────────────────────────────
	personalitiesCmd := &cobra.Command{
		Use:   "personalities",
		Short: "List the available personalities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range personality.Options() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s %s\n", p.Icon, p.ID, p.Description)
			}
			return nil
		},
	}

	root.AddCommand(replyCmd, welcomeCmd, embedCmd, validateCmd, personalitiesCmd)
	return root
}
