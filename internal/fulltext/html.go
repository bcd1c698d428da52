// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// contentTags are the elements whose text is considered article content.
var contentTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true,
	"li": true, "td": true, "th": true,
}

// skipTags are subtrees that never contribute article text.
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"nav": true, "header": true, "footer": true,
}

// extractHTMLText parses an HTML document and returns the concatenated
// text of its content elements. A malformed document yields whatever text
// the tokenizer could recover.
func extractHTMLText(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	// Prefer the abstract or main element when present, else the body.
	root := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "div" && attrValue(n, "id") == "abstract"
	})
	if root == nil {
		root = findNode(doc, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "main"
		})
	}
	if root == nil {
		root = findNode(doc, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "body"
		})
	}
	if root == nil {
		root = doc
	}

	var parts []string
	collectText(root, false, &parts)
	return strings.Join(parts, "\n")
}

// collectText walks the tree gathering trimmed text of content elements.
// inContent marks that an ancestor was already a content element, so bare
// text nodes are captured once.
func collectText(n *html.Node, inContent bool, parts *[]string) {
	if n.Type == html.ElementNode {
		if skipTags[n.Data] {
			return
		}
		if contentTags[n.Data] {
			text := strings.TrimSpace(nodeText(n))
			if text != "" {
				*parts = append(*parts, text)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, inContent, parts)
	}
}

// nodeText returns the concatenated text content of a subtree.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// findNode returns the first node in document order matching the predicate.
func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
