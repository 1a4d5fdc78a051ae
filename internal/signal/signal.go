// Package signal classifies inbound text into the global conversation
// signals that override normal flow dispatch: opt-out, crisis, and greeting.
//
// The phrase lists are literal Spanish data, matching what the wellbeing
// team currently publishes to students. They are kept in one place so a
// future config loader can replace them without touching the classifier.
package signal

import "strings"

// Kind is the classification result for one inbound message.
type Kind int

const (
	// None means no global signal matched; normal flow dispatch applies.
	None Kind = iota
	// OptOut asks to stop receiving messages.
	OptOut
	// Crisis indicates a possible self-harm or high-risk situation.
	Crisis
	// Greeting resets the conversation and shows the main menu.
	Greeting
)

var greetingTokens = []string{
	"hola", "hello", "hi", "buenos dias", "buenas tardes", "buenas noches",
}

var optOutTokens = []string{
	"baja", "stop", "alto",
}

var crisisPhrases = []string{
	"suicidio", "suicida", "me quiero morir", "quitarme la vida",
	"dañarme", "autolesion", "estoy en peligro", "no quiero vivir",
	"matarme", "me voy a hacer daño",
}

// normalize folds case and trims surrounding whitespace.
func normalize(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// IsGreeting reports whether the input is exactly a greeting token.
// Exact match only: "hola" matches, "holanda" does not.
func IsGreeting(input string) bool {
	n := normalize(input)
	for _, token := range greetingTokens {
		if n == token {
			return true
		}
	}
	return false
}

// IsOptOut reports whether the input is exactly an opt-out token.
func IsOptOut(input string) bool {
	n := normalize(input)
	for _, token := range optOutTokens {
		if n == token {
			return true
		}
	}
	return false
}

// IsCrisis reports whether the input contains any crisis phrase anywhere.
// Substring match: the phrases are alarming in any position.
func IsCrisis(input string) bool {
	n := normalize(input)
	for _, phrase := range crisisPhrases {
		if strings.Contains(n, phrase) {
			return true
		}
	}
	return false
}

// Classify applies the global signal precedence: opt-out first, then
// crisis, then greeting. Only the first match fires.
func Classify(input string) Kind {
	switch {
	case IsOptOut(input):
		return OptOut
	case IsCrisis(input):
		return Crisis
	case IsGreeting(input):
		return Greeting
	default:
		return None
	}
}
