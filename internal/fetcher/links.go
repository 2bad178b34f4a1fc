package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Anchor is a hyperlink lifted from raw HTML.
type Anchor struct {
	Href string
	Text string
}

// FetchDirect retrieves and flattens the raw page without the reader
// gateway. It is the fallback path when the gateway cannot render a page;
// the output approximates the gateway's markdown closely enough for link
// extraction prompts.
func (f *Fetcher) FetchDirect(ctx context.Context, pageURL string) (string, error) {
	pageURL = RepairURL(pageURL)

	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter interrupted: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("direct fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing page URL: %w", err)
	}

	text, anchors, err := flattenHTML(string(body), base)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(text)
	if len(anchors) > 0 {
		sb.WriteString("\n\nLinks:\n")
		for _, a := range anchors {
			fmt.Fprintf(&sb, "- [%s](%s)\n", a.Text, a.Href)
		}
	}

	f.logger.Debug("Direct fetch complete",
		zap.String("url", pageURL),
		zap.Int("anchors", len(anchors)))

	truncated, _ := f.counter.Truncate(sb.String())
	return truncated, nil
}

// ExtractAnchors parses raw HTML and returns the anchors it contains, with
// hrefs resolved against the base URL. Fragment-only and javascript: links
// are dropped.
func ExtractAnchors(rawHTML string, base *url.URL) ([]Anchor, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var anchors []Anchor
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
					break
				}
				resolved, err := base.Parse(href)
				if err != nil {
					break
				}
				anchors = append(anchors, Anchor{
					Href: resolved.String(),
					Text: strings.TrimSpace(nodeText(n)),
				})
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return anchors, nil
}

// flattenHTML renders the document as plain text and collects its anchors.
func flattenHTML(rawHTML string, base *url.URL) (string, []Anchor, error) {
	anchors, err := ExtractAnchors(rawHTML, base)
	if err != nil {
		return "", nil, err
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript"):
			return
		case n.Type == html.TextNode:
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(sb.String()), anchors, nil
}

// nodeText concatenates the text content beneath a node.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
