package turns

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/journey-engine/pkg/content"
)

const (
	introMessage = "Unleash your inner explorer and get to know the cities of Japan. " +
		"On your cultural journey, you start with a lot of money and energy. " +
		"But the choices you make will either increase or decrease them. " +
		"Your journey ends when you either run out of money or energy. " +
		"Stay exploring for as long as you can before it ends!"

	helpMessage = "Hello, explorer! It's good to see you! To play this game, start by choosing a city to explore. " +
		"If you're stuck on a hard level, ask the guide for a tip. " +
		"Don't forget that your wealth or energy either increase or decrease based on the choices you make while on your journey. " +
		"When you run out of either, the game ends."

	welcomeBackMessage     = "Welcome back explorer! It's good to see you!"
	noActiveJourneyMessage = "Welcome back, explorer! You don't have an active journey."
	newJourneyFormat       = "Welcome to your new %s journey!"

	gameEndMessage  = "The next question could not be found for your journey. You have reached the end."
	depletedMessage = "Oh no explorer, you don't have enough wealth or energy to continue on your journey! This means your journey is over."
	lowWarning      = "Be careful explorer, you are running low on wealth or energy. If you need a travel tip, ask the guide."
	continuePrompt  = "Say yes or no to keep exploring."

	tipFormat         = "Hello explorer! %s"
	tipRepromptFormat = "Explorer, don't hesitate! %s"
	tipUnavailable    = "A tip is not available at this time. Make sure that you are in active game play."
	noTipForQuestion  = "The guide has no tip for this one, explorer."

	unknownCityMessage  = "Sorry, explorer! I don't understand what you want to do. That city is probably not supported yet."
	noJourneyMessage    = "Sorry, explorer! I don't understand what you want to do."
	alreadyEndedMessage = "This journey has already ended, explorer."
	genericApology      = "Sorry, I had trouble doing what you asked. Please try again."

	goodbyeFormat = "Goodbye! %s. New journeys to Sapporo, Nagasaki, and Okinawa coming soon!"

	fallbackCityPrompt = "Which city would you like to explore?"
)

var answerReprompts = []string{
	"Do not stall explorer! Please answer yes or no. If you need a travel tip, ask the guide.",
	"Be careful explorer, is your answer yes or no?",
	"You are running out of time explorer! Please answer yes or no.",
	"Explorer, is your answer yes or no? If you need a travel tip, ask the guide.",
	"Yes or no, explorer! If you need a travel tip, ask the guide.",
}

// cityPrompt lists the playable cities: "Do you want to explore Tokyo or Kyoto?".
func cityPrompt(cities []content.City) string {
	names := make([]string, 0, len(cities))
	for _, c := range cities {
		names = append(names, c.Name)
	}

	switch len(names) {
	case 0:
		return fallbackCityPrompt
	case 1:
		return fmt.Sprintf("Do you want to explore %s?", names[0])
	case 2:
		return fmt.Sprintf("Do you want to explore %s or %s?", names[0], names[1])
	default:
		return fmt.Sprintf("Do you want to explore %s, or %s?",
			strings.Join(names[:len(names)-1], ", "), names[len(names)-1])
	}
}

func goodbye(fact string) string {
	return fmt.Sprintf(goodbyeFormat, strings.TrimSuffix(strings.TrimSpace(fact), "."))
}
