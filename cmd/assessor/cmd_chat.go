package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/adaptive-assessment/internal/app"
	"github.com/danielpatrickdp/adaptive-assessment/internal/orchestrator"
	"github.com/danielpatrickdp/adaptive-assessment/internal/recommend"
	"github.com/spf13/cobra"
)

var chatUser string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run an assessment session in the terminal",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatUser, "user", "local", "user id for the session")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	cur, err := a.Engine.CurrentInventory(ctx, chatUser)
	if err != nil {
		return err
	}
	p, err := a.Catalog.Lookup(cur)
	if err != nil {
		return err
	}

	fmt.Println("Career assessment ready.")
	fmt.Printf("  Store: %s | Oracle: %s | User: %s\n", cfg.Store.Driver, cfg.Oracle.Transport, chatUser)
	fmt.Println("Commands: /reset, /scores, quit")
	fmt.Printf("\n%s\n\n", p.Opening)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "/reset":
			if err := a.Engine.Reset(ctx, chatUser); err != nil {
				logger.Error().Err(err).Msg("reset failed")
				continue
			}
			fmt.Println("Session reset.")
			continue
		case "/scores":
			printScores(ctx, a)
			continue
		}

		resp, err := a.Engine.Handle(ctx, chatUser, text)
		if err != nil {
			logger.Error().Err(err).Msg("turn failed")
			continue
		}
		fmt.Printf("\n%s\n\n", resp.Text)
		if resp.Kind == orchestrator.KindFinish {
			fmt.Println("[assessment complete]")
		}
	}
	return scanner.Err()
}

func printScores(ctx context.Context, a *app.App) {
	list, err := a.Engine.Assessments(ctx, chatUser)
	if err != nil {
		logger.Error().Err(err).Msg("load scores failed")
		return
	}
	if len(list) == 0 {
		fmt.Println("No scores yet.")
		return
	}
	for _, as := range list {
		p, err := a.Catalog.Lookup(as.Inventory)
		if err != nil {
			continue
		}
		mark := ""
		if as.Finished {
			mark = " (done)"
		}
		fmt.Printf("  %s%s: %s\n", p.Title, mark, recommend.FormatVector(p.Dimensions, as.Scores))
	}
}
