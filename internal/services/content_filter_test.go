package services

import (
	"testing"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/config"
)

func TestContentFilterCheck(t *testing.T) {
	f := NewContentFilter(config.DefaultFilter())
	tests := []struct {
		text   string
		ok     bool
		reason string
	}{
		{"Praying for your family this week", true, ""},
		{"", true, ""},
		{"what the fuck", false, ReasonLanguage},
		{"see www.example.com/page", false, ReasonLink},
		{"write me at someone@example.com", false, ReasonContact},
		{"call 555-123-4567", false, ReasonContact},
		{"I fell for a phone scam and lost my savings", true, ""},
		{"Praise the Lord!!!!", true, ""},
		{"Is anyone awake???? Please pray", true, ""},
		{"heyyyyyy", true, ""},
		{"nooooooooooo", false, ReasonRepeat},
		{"HELP ME PLEASE", true, ""},
		{"PLEASE HELP ME NOW FRIENDS", false, ReasonShouting},
		{"Passing the class", true, ""},
		{"My classmate is an asshole", false, ReasonLanguage},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			ok, reason := f.Check(tt.text)
			if ok != tt.ok || reason != tt.reason {
				t.Errorf("Check(%q) = %v, %q; want %v, %q", tt.text, ok, reason, tt.ok, tt.reason)
			}
		})
	}
}

func TestContentFilterRules(t *testing.T) {
	tests := []struct {
		name   string
		rules  config.Filter
		text   string
		ok     bool
		reason string
	}{
		{"custom word list", config.Filter{BannedWords: []string{"gossip"}}, "no Gossip here", false, ReasonLanguage},
		{"default words not applied", config.Filter{BannedWords: []string{"gossip"}}, "oh shit", true, ""},
		{"empty word list", config.Filter{}, "oh shit", true, ""},
		{"links allowed", config.Filter{}, "https://example.com/verse", true, ""},
		{"contact allowed", config.Filter{}, "call 555-123-4567", true, ""},
		{"repeat check off", config.Filter{}, "nooooooooooo", true, ""},
		{"tight repeat", config.Filter{MaxRepeat: 3}, "sooo good", false, ReasonRepeat},
		{"caps check off", config.Filter{}, "PLEASE HELP ME NOW FRIENDS", true, ""},
		{"tight caps", config.Filter{MaxShouted: 1}, "HELP ME", false, ReasonShouting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := NewContentFilter(tt.rules).Check(tt.text)
			if ok != tt.ok || reason != tt.reason {
				t.Errorf("Check(%q) = %v, %q; want %v, %q", tt.text, ok, reason, tt.ok, tt.reason)
			}
		})
	}
}

func TestRejectionMessage(t *testing.T) {
	if got := RejectionMessage(ReasonLink); got != "Links are not allowed." {
		t.Errorf("got %q", got)
	}
	if got := RejectionMessage("unknown"); got == "" {
		t.Error("unknown reason has no message")
	}
}
