package transform

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText flattens an HTML fragment to its visible text, dropping script
// and style content and collapsing whitespace. Plain input comes back
// with whitespace collapsed.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type: html.ElementNode, Data: "body",
	})
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	var parts []string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	for _, n := range nodes {
		visit(n)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
