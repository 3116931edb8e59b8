// Command crewctl is the operator CLI for Climate Crew. It talks to the same
// SQLite store as the server through the same services, so anything it does
// obeys the same rules as the API.
//
//	crewctl migrate
//	crewctl leaderboard --limit 10
//	crewctl assign greta "Cycle to work today" --points 30
//	crewctl complete greta --points 20
//	crewctl fit 59.33,18.06 59.35,18.10
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
