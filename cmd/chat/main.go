package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ayurmitra/ayurmitra/internal/bootstrap"
	"github.com/ayurmitra/ayurmitra/internal/config"
	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

const banner = `Ayurmitra — Ayurvedic consultation assistant
Describe your symptoms to begin. Type "exit" or "quit" to finish.
This is advisory information, not a medical diagnosis.`

func main() {
	cfg := config.Load()
	// Log to stderr so JSON lines never interleave with the conversation.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})).With("service", "chat"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewChat(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	session, err := app.Dialogue.StartSession(ctx)
	if err != nil {
		log.Fatalf("start session error: %v", err)
	}

	fmt.Println(banner)
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		fmt.Print("ayurmitra> ")
		result, err := app.Dialogue.RunTurn(ctx, session.ID, line, func(fragment string) {
			fmt.Print(fragment)
		})
		fmt.Println()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Printf("[error] %v\n", err)
			continue
		}

		printTurnMarkers(result)
		if result.Stage == domain.StageComplete || result.Stage == domain.StageEscalated {
			break
		}
	}

	report, err := app.Dialogue.EndSession(context.Background(), session.ID)
	if err != nil {
		log.Fatalf("end session error: %v", err)
	}
	fmt.Printf("\nSession %s ended: outcome=%s turns=%d\n", report.SessionID, report.Outcome, report.Turns)
	fmt.Printf("Evaluation report written to %s\n", cfg.ReportDir)
}

func printTurnMarkers(result *domain.TurnResult) {
	switch result.Intent {
	case domain.IntentSafetyAlert:
		fmt.Println("[safety] your message matched an urgent-risk pattern; please seek professional care")
	case domain.IntentEscalation:
		fmt.Println("[escalation] this consultation was escalated to urgent in-person care")
	}
	if result.Degraded {
		fmt.Println("[notice] part of this reply used a degraded fallback")
	}
}
