package main

import (
	"errors"
	"strings"

	"github.com/jwebster45206/journey-engine/pkg/turn"
)

var errQuit = errors.New("quit")

const commandHelp = `Commands:
• explore <city> - Start or continue a journey
• yes / no - Answer the current question
• tip - Ask the guide for a tip
• help - Hear the rules and the current question
• resume - Pick up where you left off
• end - End the session
• /cities - List cities
• Ctrl+Y - Copy transcript
• Ctrl+C - Quit`

// parseCommand maps one line of player input onto a turn event. Lines that
// are not engine commands return ok=false.
func parseCommand(input string) (ev turn.Event, ok bool, err error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	if len(fields) == 0 {
		return turn.Event{}, false, nil
	}

	switch fields[0] {
	case "explore", "visit", "start":
		if len(fields) < 2 {
			return turn.Event{}, false, errors.New("which city? try: explore tokyo")
		}
		// Keep the original spelling; the server title-cases it.
		city := strings.Join(strings.Fields(input)[1:], " ")
		return turn.Event{Type: turn.StartCity, City: city}, true, nil
	case "yes", "y", "no", "n":
		answer := "yes"
		if fields[0] == "no" || fields[0] == "n" {
			answer = "no"
		}
		return turn.Event{Type: turn.Answer, Answer: answer}, true, nil
	case "tip", "guide":
		return turn.Event{Type: turn.RequestTip}, true, nil
	case "help":
		return turn.Event{Type: turn.Help}, true, nil
	case "resume", "continue":
		return turn.Event{Type: turn.Resume}, true, nil
	case "end", "stop":
		return turn.Event{Type: turn.End}, true, nil
	case "quit", "exit", "/quit":
		return turn.Event{}, false, errQuit
	}
	return turn.Event{}, false, nil
}
