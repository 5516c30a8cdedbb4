// Command memberdesk runs the membership backend and its maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"memberdesk/backend/internal/httpapi"
)

var (
	runServer          = run
	makeRouter         = newRouter
	openApp            = openApplication
	exitProcess        = os.Exit
	signalNotify       = signal.Notify
	signalStop         = signal.Stop
	newShutdownContext = context.WithTimeout
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		exitProcess(1)
		return
	}
}

func newRouter(deps httpapi.Dependencies) (*httpapi.API, error) {
	router, err := httpapi.NewRouter(deps)
	if err != nil {
		return nil, fmt.Errorf("initialize router: %w", err)
	}
	return router, nil
}
