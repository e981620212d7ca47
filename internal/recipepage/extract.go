// Package recipepage pulls ingredient lines and a title out of a recipe
// web page so they can be fed through ingestion.
package recipepage

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/larderhq/larder/pkg/larder/internalerr"
)

// Page is the extracted content of a recipe page.
type Page struct {
	Title       string
	Ingredients []string
}

// Extract parses an HTML document and returns the recipe title and its
// ingredient lines. Sites are messy; the heuristics here cover the two
// common shapes: list items under an element whose class or id mentions
// "ingredient", and list items following an "Ingredients" heading.
func Extract(r io.Reader) (Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Page{}, err
	}

	page := Page{Title: findTitle(doc)}
	collectClassed(doc, false, &page.Ingredients)
	if len(page.Ingredients) == 0 {
		collectAfterHeading(doc, &page.Ingredients)
	}
	if len(page.Ingredients) == 0 {
		return Page{}, internalerr.ErrNotFound
	}
	return page, nil
}

// findTitle prefers the page's <h1> over the <title> tag, which sites
// tend to pad with branding.
func findTitle(n *html.Node) string {
	if t := findElementText(n, "h1"); t != "" {
		return t
	}
	return findElementText(n, "title")
}

func findElementText(n *html.Node, tag string) string {
	if n.Type == html.ElementNode && n.Data == tag {
		if t := nodeText(n); t != "" {
			return t
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findElementText(c, tag); t != "" {
			return t
		}
	}
	return ""
}

// collectClassed gathers <li> text inside any subtree whose class or id
// attribute contains "ingredient".
func collectClassed(n *html.Node, inside bool, out *[]string) {
	if n.Type == html.ElementNode {
		if !inside && hasIngredientAttr(n) {
			inside = true
		}
		if inside && n.Data == "li" {
			appendLine(out, nodeText(n))
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectClassed(c, inside, out)
	}
}

// collectAfterHeading gathers the first <ul> or <ol> that follows a
// heading whose text contains "ingredient".
func collectAfterHeading(n *html.Node, out *[]string) {
	var afterHeading bool
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3", "h4":
				afterHeading = strings.Contains(strings.ToLower(nodeText(n)), "ingredient")
			case "ul", "ol":
				if afterHeading {
					for c := n.FirstChild; c != nil; c = c.NextSibling {
						if c.Type == html.ElementNode && c.Data == "li" {
							appendLine(out, nodeText(c))
						}
					}
					return true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(n)
}

func hasIngredientAttr(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key == "class" || a.Key == "id" {
			if strings.Contains(strings.ToLower(a.Val), "ingredient") {
				return true
			}
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func appendLine(out *[]string, line string) {
	if line != "" {
		*out = append(*out, line)
	}
}
