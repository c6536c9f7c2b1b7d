// Package fetch turns web URLs into plain text suitable for indexing.
// Regular pages get stripped-down visible text; YouTube links try the
// caption track first and fall back to the watch page.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

var (
	// ErrInvalidURL is returned for URLs that are not http or https.
	ErrInvalidURL = errors.New("invalid url")
	// ErrNoText is returned when a page yields no extractable text.
	ErrNoText = errors.New("no text extracted from url")
)

// Result is the fetched document content.
type Result struct {
	Title string
	Text  string
}

// Fetcher retrieves and extracts text from web sources.
type Fetcher struct {
	client *http.Client
}

// New creates a Fetcher with the given HTTP client. A nil client gets a
// 20-second-timeout default.
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch downloads the URL and extracts its text content.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	u := strings.TrimSpace(rawURL)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return Result{}, ErrInvalidURL
	}

	if IsYouTubeURL(u) {
		if id := YouTubeVideoID(u); id != "" {
			if res, err := f.fetchTranscript(ctx, id); err == nil {
				return res, nil
			}
			// Captions unavailable, fall through to the watch page.
		}
	}

	return f.fetchPage(ctx, u)
}

func (f *Fetcher) fetchPage(ctx context.Context, u string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("failed to fetch url: status %d", resp.StatusCode)
	}

	title, text, err := ExtractHTML(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse page: %w", err)
	}
	if title == "" {
		title = u
	}
	if text == "" {
		return Result{}, ErrNoText
	}
	return Result{Title: title, Text: text}, nil
}

var blankRuns = regexp.MustCompile(`\n{2,}`)

// ExtractHTML parses an HTML document and returns its title and visible
// text. Script, style and noscript subtrees are dropped and runs of blank
// lines collapse to a single paragraph break.
func ExtractHTML(r io.Reader) (title, text string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text = blankRuns.ReplaceAllString(strings.TrimSpace(sb.String()), "\n\n")
	return title, text, nil
}
