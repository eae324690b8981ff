package main

import (
	"testing"

	"github.com/jwebster45206/journey-engine/pkg/journey"
	"github.com/jwebster45206/journey-engine/pkg/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input  string
		want   turn.Event
		wantOK bool
	}{
		{"explore Tokyo", turn.Event{Type: turn.StartCity, City: "Tokyo"}, true},
		{"  visit new york ", turn.Event{Type: turn.StartCity, City: "new york"}, true},
		{"YES", turn.Event{Type: turn.Answer, Answer: "yes"}, true},
		{"n", turn.Event{Type: turn.Answer, Answer: "no"}, true},
		{"tip", turn.Event{Type: turn.RequestTip}, true},
		{"help", turn.Event{Type: turn.Help}, true},
		{"resume", turn.Event{Type: turn.Resume}, true},
		{"end", turn.Event{Type: turn.End}, true},
		{"dance", turn.Event{}, false},
		{"", turn.Event{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ev, ok, err := parseCommand(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	_, _, err := parseCommand("explore")
	assert.Error(t, err)

	_, _, err = parseCommand("quit")
	assert.ErrorIs(t, err, errQuit)
}

func TestSidePanel(t *testing.T) {
	assert.Contains(t, writeMetadata("u1", turn.Session{}), "No active journey")

	s := turn.Session{City: "Kyoto", PlayerNumber: 42, Journey: &journey.Journey{
		PlayerNumber: 42, CityID: 2, QuestionNumber: 3, MoneyLevel: 55, EnergyLevel: 8, Active: true,
	}}
	out := writeMetadata("u1", s)
	assert.Contains(t, out, "Kyoto")
	assert.Contains(t, out, "Money:")
	assert.Contains(t, out, "55")
	assert.Contains(t, out, "low")
}
