package teadriver

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teranos/pagecam/trip"
)

// modelWrapper sits between the program and the model. It answers driver
// messages and snapshots the model after every update.
type modelWrapper struct {
	tea.Model
	driver *Driver
}

// Update intercepts driver messages and keeps the driver's snapshot current.
func (w modelWrapper) Update(msg tea.Msg) (result tea.Model, cmd tea.Cmd) {
	switch msg := msg.(type) {
	case barrierMsg:
		w.driver.storeSnapshot(w.Model)
		close(msg.done)
		return w, nil
	case commandMsg:
		w.driver.handleCommand(w.Model, msg)
		w.driver.storeSnapshot(w.Model)
		return w, nil
	}

	defer func() {
		if r := recover(); r != nil {
			w.driver.handlePanic(r, msg)
			result, cmd = w, nil
		}
	}()

	next, cmd := w.Model.Update(msg)
	if next == nil {
		w.driver.recordTrip(trip.NewFall(trip.KindMalformed, "Update returned nil model", trip.Context{
			"tea_msg": fmt.Sprintf("%T", msg),
		}))
		return w, cmd
	}
	w.driver.storeSnapshot(next)
	return modelWrapper{Model: next, driver: w.driver}, cmd
}

// handlePanic records a panic in the model's Update. The model keeps its
// state from before the message, so the program carries on.
func (d *Driver) handlePanic(value any, msg tea.Msg) {
	d.recordTrip(trip.NewFall(trip.KindInteraction, fmt.Sprintf("Model panic during Update: %v", value), trip.Context{
		"panic_value": fmt.Sprint(value),
		"tea_msg":     fmt.Sprintf("%T: %+v", msg, msg),
		"model_type":  fmt.Sprintf("%T", d.model),
	}))
}
