package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/config"
)

// Filter rejection reasons, surfaced as the "reason" field of a 422.
const (
	ReasonLanguage = "inappropriate_language"
	ReasonLink     = "url_not_allowed"
	ReasonContact  = "contact_info_not_allowed"
	ReasonRepeat   = "spam_detected"
	ReasonShouting = "excessive_caps"
)

var (
	linkPattern    = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+\.\S+)`)
	emailPattern   = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)
	phonePattern   = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	shoutedPattern = regexp.MustCompile(`\b[A-Z]{2,}\b`)
)

// ContentFilter screens item text before it is written. It is immutable
// after construction and safe for concurrent use.
type ContentFilter struct {
	rules  config.Filter
	banned *regexp.Regexp // nil when the word list is empty
}

func NewContentFilter(rules config.Filter) *ContentFilter {
	f := &ContentFilter{rules: rules}
	words := make([]string, 0, len(rules.BannedWords))
	for _, w := range rules.BannedWords {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, regexp.QuoteMeta(w))
		}
	}
	if len(words) > 0 {
		f.banned = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	}
	return f
}

// Check returns false and a reason code when text breaks the community
// guidelines. Empty text passes; emptiness is a validation concern.
func (f *ContentFilter) Check(text string) (bool, string) {
	if text == "" {
		return true, ""
	}
	if f.banned != nil && f.banned.MatchString(text) {
		return false, ReasonLanguage
	}
	if f.rules.BlockLinks && linkPattern.MatchString(text) {
		return false, ReasonLink
	}
	if f.rules.BlockContact && (emailPattern.MatchString(text) || phonePattern.MatchString(text)) {
		return false, ReasonContact
	}
	if f.rules.MaxRepeat > 0 && repeatsLetter(text, f.rules.MaxRepeat) {
		return false, ReasonRepeat
	}
	if f.rules.MaxShouted > 0 && len(shoutedPattern.FindAllString(text, -1)) > f.rules.MaxShouted {
		return false, ReasonShouting
	}
	return true, ""
}

// repeatsLetter reports whether any letter occurs n times in a row,
// ignoring case. Punctuation runs like "!!!!" never count.
func repeatsLetter(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range strings.ToLower(text) {
		if r < 'a' || r > 'z' {
			prev, run = 0, 0
			continue
		}
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

var rejectionMessages = map[string]string{
	ReasonLanguage: "Your post contains inappropriate language.",
	ReasonLink:     "Links are not allowed.",
	ReasonContact:  "Please keep phone numbers and email addresses out of posts.",
	ReasonRepeat:   "Your post looks like repeated characters.",
	ReasonShouting: "Please avoid writing in all caps.",
}

func RejectionMessage(reason string) string {
	if msg, ok := rejectionMessages[reason]; ok {
		return msg
	}
	return fmt.Sprintf("Your post does not meet our community guidelines (%s).", reason)
}
