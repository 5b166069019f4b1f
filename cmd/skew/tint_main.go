package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/skew/internal/tint"
)

func newTintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tint",
		Short: "Tint a banner with the gradient under the mouse pointer",
		Long: `Opens a full-screen surface and recolors the banner text on every mouse
move. Press q, Esc or Ctrl-C to quit.`,
		RunE: runTint,
	}

	cmd.Flags().String("text", tint.DefaultText, "Banner text")
	cmd.Flags().Bool("fix-blue", false, "Average blue with blue when deriving corners")

	return cmd
}

func runTint(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintf(os.Stderr, "❌ tint requires a TTY terminal.\n")
		fmt.Fprintf(os.Stderr, "   Use 'skew color' to probe the gradient non-interactively.\n")
		return reportedError{fmt.Errorf("stdout is not a terminal")}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	text, _ := cmd.Flags().GetString("text")
	if fixBlue, _ := cmd.Flags().GetBool("fix-blue"); fixBlue {
		cfg.Palette.FixBlueChannel = true
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return tint.New(screen, cfg.Palette.Grid(), text).Run(ctx)
}
