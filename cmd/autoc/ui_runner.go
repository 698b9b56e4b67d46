package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"autoc/internal/driver"
	"autoc/internal/ui"
)

type buildOutcome struct {
	results []*driver.ModuleResult
	err     error
}

// channelObserver bridges driver lifecycle callbacks onto the progress
// model's event channel.
type channelObserver struct {
	ch chan<- ui.Event
}

func (o channelObserver) ModuleStarted(name string) {
	o.ch <- ui.Event{Module: name, Status: ui.StatusBuilding}
}

func (o channelObserver) ModuleFinished(name string, cached bool, err error) {
	status := ui.StatusDone
	switch {
	case err != nil:
		status = ui.StatusError
	case cached:
		status = ui.StatusCached
	}
	o.ch <- ui.Event{Module: name, Status: status}
}

func runBuildWithUI(ctx context.Context, title string, modules, manifests []string, opts driver.Options) ([]*driver.ModuleResult, error) {
	events := make(chan ui.Event, 256)
	outcomeCh := make(chan buildOutcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.Observer = channelObserver{ch: events}
		results, err := driver.BuildAll(ctx, manifests, optsCopy)
		outcomeCh <- buildOutcome{results: results, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, modules, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
