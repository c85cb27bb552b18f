// Package markdown converts feed-embedded HTML fragments into Markdown.
package markdown

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
)

var (
	tagRe      = regexp.MustCompile(`(?i)</?[a-z][a-z0-9-]*(\s[^<>]*)?/?>`)
	brRe       = regexp.MustCompile(`(?i)<br\s*/?>`)
	newlinesRe = regexp.MustCompile(`\n{3,}`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&#160;", " ",
		"&ensp;", " ",
		"&emsp;", " ",
		"&thinsp;", " ",
	)

	converter = newConverter()
)

// IsHTML reports whether s contains an HTML tag. Callers use it to skip
// normalization for content that is already plain text or Markdown.
func IsHTML(s string) bool {
	return tagRe.MatchString(s)
}

// Normalize converts an HTML fragment to Markdown. It never fails: any
// conversion problem returns the input unchanged so ingestion can proceed.
func Normalize(input string) (out string) {
	if input == "" {
		return ""
	}
	defer func() {
		if recover() != nil {
			out = input
		}
	}()

	cleaned := brRe.ReplaceAllString(input, "\n")
	cleaned = entityReplacer.Replace(cleaned)

	converted, err := converter.ConvertString(cleaned)
	if err != nil {
		return input
	}
	converted = newlinesRe.ReplaceAllString(converted, "\n\n")
	return strings.TrimSpace(converted)
}

func newConverter() *md.Converter {
	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		CodeBlockStyle:   "fenced",
		BulletListMarker: "-",
		StrongDelimiter:  "**",
		EmDelimiter:      "_",
	})
	// GitHub flavored additions: tables, ~~strikethrough~~ for del/s/strike.
	conv.Use(plugin.GitHubFlavored())

	conv.AddRules(
		md.Rule{
			Filter: []string{"img"},
			Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
				src := strings.TrimSpace(selec.AttrOr("src", ""))
				if src == "" {
					// An image without a source would render as a broken
					// reference; drop it.
					return md.String("")
				}
				alt := strings.TrimSpace(selec.AttrOr("alt", ""))
				if title := strings.TrimSpace(selec.AttrOr("title", "")); title != "" {
					return md.String(fmt.Sprintf("![%s](%s %q)", alt, src, title))
				}
				return md.String(fmt.Sprintf("![%s](%s)", alt, src))
			},
		},
		md.Rule{
			Filter: []string{"iframe", "video", "embed"},
			Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
				src := strings.TrimSpace(selec.AttrOr("src", ""))
				if src == "" {
					// <video> players often carry the URL on a <source> child.
					src = strings.TrimSpace(selec.Find("source").AttrOr("src", ""))
				}
				if src == "" {
					return md.String("")
				}
				label := strings.TrimSpace(selec.AttrOr("title", ""))
				if label == "" {
					label = src
				}
				// Embedded players don't survive a Markdown rendering; keep
				// the target reachable with a plain link instead.
				return md.String(fmt.Sprintf("\n\n[%s](%s)\n\n", label, src))
			},
		},
	)
	return conv
}
