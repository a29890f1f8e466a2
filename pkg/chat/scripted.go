package chat

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// scriptedRule maps a keyword set to a canned reply.
// The first rule whose keywords match wins, so order is the priority.
type scriptedRule struct {
	keywords []string
	reply    string
	color    string
}

// scriptedRules is the fixed demo-mode script, checked top to bottom.
var scriptedRules = []scriptedRule{
	{
		keywords: []string{"red"},
		reply:    "Red like a ladybug! Zoom zoom, can you spot something red near you?",
		color:    "#ffebee",
	},
	{
		keywords: []string{"blue", "ocean", "sea"},
		reply:    "Blue like the big ocean! I wonder what fish are swimming down there. Do you like splashing in water?",
		color:    "#e0f7fa",
	},
	{
		keywords: []string{"green", "frog"},
		reply:    "Green like a hoppy little frog! Ribbit ribbit. What else is green?",
		color:    "#e8f5e9",
	},
	{
		keywords: []string{"yellow", "sun"},
		reply:    "Yellow like warm sunshine! It makes me feel all happy inside.",
		color:    "#fffde7",
	},
	{
		keywords: []string{"pink"},
		reply:    "Pink like cotton candy clouds! So soft and sweet.",
		color:    "#fce4ec",
	},
	{
		keywords: []string{"purple"},
		reply:    "Purple like juicy grapes! Yum yum. What is your favorite fruit?",
		color:    "#f3e5f5",
	},
	{
		keywords: []string{"dog", "puppy", "cat", "kitty", "animal"},
		reply:    "Ooh I love animals! If you could have any animal friend, which one would you pick?",
	},
	{
		keywords: []string{"sing", "song", "music"},
		reply:    "La la laaa! I love music too. Can you hum your favorite song for me?",
	},
	{
		keywords: []string{"hello", "hi", "hey"},
		reply:    "Hello hello! I am so happy you are here to play with me.",
	},
	{
		keywords: []string{"bye", "goodbye", "night"},
		reply:    "Bye bye for now, friend! Come back soon so we can look at more pictures together.",
	},
}

// scriptedGreeting opens every demo conversation.
const scriptedGreeting = "Hi friend, I'm Kibo! What a fun picture. Tell me, what do you see in it?"

// scriptedGreetingColor is the background set with the greeting.
const scriptedGreetingColor = "#fff8e1"

// scriptedDefault is used when no rule matches.
const scriptedDefault = "That sounds really neat! Tell me more, I love hearing your ideas."

// Scripted is the offline fallback client. It never fails and needs no
// network or credentials.
type Scripted struct {
	// Delay simulates thinking time before each reply.
	delay time.Duration
}

// NewScripted creates the demo-mode client with the default delay.
func NewScripted() *Scripted {
	return &Scripted{delay: 800 * time.Millisecond}
}

// NewScriptedWithDelay creates a demo client with a custom delay.
// Tests pass zero to keep things fast.
func NewScriptedWithDelay(delay time.Duration) *Scripted {
	return &Scripted{delay: delay}
}

// StartConversation returns the fixed greeting after the simulated delay.
func (s *Scripted) StartConversation(ctx context.Context, imageURL string) (*Reply, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	return &Reply{Text: scriptedGreeting, Color: scriptedGreetingColor}, nil
}

// ContinueConversation keyword-matches the latest user turn against the
// fixed rule table, first match wins.
func (s *Scripted) ContinueConversation(ctx context.Context, turns []Turn) (*Reply, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}

	words := scriptedWords(LatestUserText(turns))
	for _, rule := range scriptedRules {
		for _, kw := range rule.keywords {
			if words[kw] {
				return &Reply{Text: rule.reply, Color: rule.color}, nil
			}
		}
	}

	return &Reply{Text: scriptedDefault}, nil
}

// scriptedWords lowercases the text and splits it into a word set.
// Keywords only fire on whole words, so "hi" does not hide inside
// "nothing" and "red" does not hide inside "scared".
func scriptedWords(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	words := make(map[string]bool, len(fields))
	for _, f := range fields {
		words[f] = true
	}
	return words
}

// Close is a no-op for the scripted client.
func (s *Scripted) Close() error {
	return nil
}

func (s *Scripted) sleep(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Verify Scripted implements Client at compile time.
var _ Client = (*Scripted)(nil)
