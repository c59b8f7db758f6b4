// Package main provides the entry point for the jam queue client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/jamqueueapp/jamqueue-client/internal/channel"
	"github.com/jamqueueapp/jamqueue-client/internal/config"
	"github.com/jamqueueapp/jamqueue-client/internal/di"
	"github.com/jamqueueapp/jamqueue-client/internal/domain"
	"github.com/jamqueueapp/jamqueue-client/internal/logger"
	"github.com/jamqueueapp/jamqueue-client/internal/queue"
	"github.com/jamqueueapp/jamqueue-client/internal/session"
)

func main() {
	injector := di.NewContainer()

	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Client.JamID == "" {
		fmt.Fprintln(os.Stderr, "No jam selected: pass -jam or set JAM_ID")
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	sess := do.MustInvoke[*session.Session](injector)
	sess.OnChange(renderQueue)

	if err := sess.Mount(context.Background()); err != nil {
		log.WithError(err).Error("Failed to load jam")
		os.Exit(1)
	}

	// Binding after Mount so the first broadcast lands on live state.
	ctrl := do.MustInvoke[*channel.Controller](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	ctrl.Close()

	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}
}

// renderQueue draws the derived view after every snapshot change.
func renderQueue(jam *domain.JamSession, view queue.View) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n== %s ==\n", jam.Name)

	if len(view.Ungrouped) > 0 {
		renderSection(&b, "Queue", view.Ungrouped, view.NextID)
	} else {
		renderSection(&b, "Bangers", view.Bangers, view.NextID)
		renderSection(&b, "Ballads", view.Ballads, view.NextID)
	}
	os.Stdout.WriteString(b.String())
}

func renderSection(b *strings.Builder, title string, entries []domain.QueueEntry, nextID string) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, e := range entries {
		marker := "  "
		switch {
		case e.ID == nextID:
			marker = "> "
		case e.Played:
			marker = "✓ "
		}
		fmt.Fprintf(b, "%s%-40s %s  %d vote(s)%s%s\n",
			marker, e.Song.Title, e.Song.Artist, e.Votes,
			captainSuffix(e.Captains), highlightSuffix(e.Highlight))
	}
}

func captainSuffix(captains []domain.Captain) string {
	if len(captains) == 0 {
		return ""
	}
	names := make([]string, len(captains))
	for i, c := range captains {
		names[i] = c.Name
	}
	return "  [" + strings.Join(names, ", ") + "]"
}

func highlightSuffix(h domain.Highlight) string {
	if h == domain.HighlightSuccess {
		return "  *"
	}
	return ""
}
