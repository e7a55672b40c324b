// Package events carries the structured log stream a reconciliation run
// produces. The engine never prints; it emits events into a Sink and the
// caller decides how to render them.
package events

import (
	"fmt"

	"github.com/fatih/color"
)

// Action classifies what happened to a subject.
type Action string

const (
	ActionCreate  Action = "create"
	ActionAlter   Action = "alter"
	ActionDrop    Action = "drop"
	ActionRename  Action = "rename"
	ActionSkip    Action = "skip"
	ActionBlocked Action = "blocked"
	ActionError   Action = "error"
)

// Event is one structured reconciliation log entry.
type Event struct {
	Section string // e.g. "enum", "table:users", "index:users", "junction", "reconcile"
	Subject string // the object acted on
	Action  Action
	Kind    string // error kind when Action is blocked/error
	Detail  string // SQL statement or message
}

// Sink receives events as they happen.
type Sink interface {
	Emit(Event)
}

// Recorder collects events in memory.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) { r.Events = append(r.Events, e) }

// Errors returns the recorded blocked/error events.
func (r *Recorder) Errors() []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Action == ActionBlocked || e.Action == ActionError {
			out = append(out, e)
		}
	}
	return out
}

// Statements returns every recorded SQL detail for create/alter/drop/rename
// actions, in order.
func (r *Recorder) Statements() []string {
	var out []string
	for _, e := range r.Events {
		switch e.Action {
		case ActionCreate, ActionAlter, ActionDrop, ActionRename:
			if e.Detail != "" {
				out = append(out, e.Detail)
			}
		}
	}
	return out
}

// Multi fans one stream out to several sinks.
func Multi(sinks ...Sink) Sink { return multiSink(sinks) }

type multiSink []Sink

func (m multiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Discard drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// ConsoleSink renders events to stdout, colorized per action.
type ConsoleSink struct{}

func (ConsoleSink) Emit(e Event) {
	label := fmt.Sprintf("[%s] %s", e.Section, e.Subject)
	switch e.Action {
	case ActionCreate:
		color.Green("+ %s: %s", label, e.Detail)
	case ActionDrop:
		color.Red("- %s: %s", label, e.Detail)
	case ActionAlter, ActionRename:
		color.Yellow("~ %s: %s", label, e.Detail)
	case ActionBlocked, ActionError:
		color.New(color.FgRed, color.Bold).Printf("! %s: %s %s\n", label, e.Kind, e.Detail)
	default:
		fmt.Printf("  %s: %s\n", label, e.Detail)
	}
}
