package tts

import (
	"regexp"
	"strings"
)

var (
	markdownLinkRE = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	bareURLRE      = regexp.MustCompile(`https?://\S+`)
	headingRE      = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	emphasisRE     = regexp.MustCompile(`(\*\*|__|\*|_|~~)`)
	codeFenceRE    = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRE   = regexp.MustCompile("`([^`]*)`")
	bulletRE       = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	emojiRE        = regexp.MustCompile(`[\x{1F300}-\x{1FAFF}\x{2600}-\x{27BF}\x{FE0F}\x{200D}]`)
	multiSpaceRE   = regexp.MustCompile(`\s+`)
)

// Spoken normalizes assistant text for speech output: markdown syntax, code
// blocks, URLs and emoji are removed, leaving plain prose.
func Spoken(text string) string {
	s := codeFenceRE.ReplaceAllString(text, "")
	s = markdownLinkRE.ReplaceAllString(s, "$1")
	s = bareURLRE.ReplaceAllString(s, "")
	s = headingRE.ReplaceAllString(s, "")
	s = inlineCodeRE.ReplaceAllString(s, "$1")
	s = bulletRE.ReplaceAllString(s, "")
	s = emphasisRE.ReplaceAllString(s, "")
	s = emojiRE.ReplaceAllString(s, "")
	s = multiSpaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
