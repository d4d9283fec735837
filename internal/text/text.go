// Package text turns article HTML into plain text and word counts.
package text

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Extract returns the visible text of an HTML fragment, dropping script and style bodies.
// Text nodes are joined with a space so adjacent blocks never fuse into one word.
func Extract(fragment string) (string, error) {
	doc, err := parse(fragment)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return b.String(), nil
}

// Heading returns the flattened text of the first h1 or h2, or "" when there is none.
func Heading(fragment string) string {
	doc, err := parse(fragment)
	if err != nil {
		return ""
	}
	return Flatten(doc.Find("h1, h2").First().Text())
}

func parse(fragment string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return doc, nil
}

// WordCount counts word tokens (runs of letters, digits and underscores) in the text of html.
// Unparseable input counts as zero words.
func WordCount(fragment string) int {
	plain, err := Extract(fragment)
	if err != nil {
		return 0
	}
	return len(Words(plain))
}

// Words splits plain text into word tokens.
func Words(plain string) []string {
	return strings.FieldsFunc(plain, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// Flatten collapses all whitespace, including tabs and newlines, into single spaces.
func Flatten(plain string) string {
	return strings.Join(strings.Fields(plain), " ")
}
