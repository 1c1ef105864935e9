package browser

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// skippedElements never contribute to main content.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"svg": true, "nav": true, "footer": true, "header": true, "aside": true,
	"form": true, "button": true,
}

// ExtractMainContent returns the readable text of an HTML document. It
// prefers an article/main/#content region when one exists and falls back
// to the whole body.
func ExtractMainContent(htmlText string) string {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return ""
	}

	root := findContentRoot(doc)
	if root == nil {
		root = doc
	}

	var sb strings.Builder
	collectText(root, &sb, 0)
	return cleanText(sb.String())
}

// findContentRoot locates the most specific content container.
func findContentRoot(doc *html.Node) *html.Node {
	var article, main, contentDiv *html.Node

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "article":
				if article == nil {
					article = n
				}
			case "main":
				if main == nil {
					main = n
				}
			case "div":
				if contentDiv == nil {
					id := nodeAttr(n, "id")
					class := nodeAttr(n, "class")
					if id == "content" || id == "main-content" || strings.Contains(class, "main-content") {
						contentDiv = n
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	switch {
	case article != nil:
		return article
	case main != nil:
		return main
	default:
		return contentDiv
	}
}

func collectText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 100 {
		return
	}

	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		if skippedElements[n.Data] {
			return
		}
		switch n.Data {
		case "p", "div", "section", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr", "br":
			sb.WriteString("\n")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb, depth+1)
	}
}

// ExtractMetadata pulls document metadata: title, meta description/
// keywords/author, Open Graph tags, and the canonical link.
func ExtractMetadata(htmlText string) map[string]string {
	meta := make(map[string]string)

	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return meta
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					meta["title"] = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				name := nodeAttr(n, "name")
				property := nodeAttr(n, "property")
				content := nodeAttr(n, "content")
				if content == "" {
					break
				}
				switch name {
				case "description", "keywords", "author":
					meta[name] = content
				}
				if strings.HasPrefix(property, "og:") {
					meta[property] = content
				}
			case "link":
				if nodeAttr(n, "rel") == "canonical" {
					if href := nodeAttr(n, "href"); href != "" {
						meta["canonical"] = href
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return meta
}

func nodeAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// cleanText collapses runs of whitespace left over from tag removal.
func cleanText(s string) string {
	s = multiSpacePattern.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
