package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
)

var (
	ytShortLink = regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{6,})`)
	ytWatchLink = regexp.MustCompile(`v=([A-Za-z0-9_-]{6,})`)
	ytShorts    = regexp.MustCompile(`/shorts/([A-Za-z0-9_-]{6,})`)
)

// IsYouTubeURL reports whether the URL points at a YouTube video.
func IsYouTubeURL(u string) bool {
	for _, marker := range []string{"youtube.com/watch", "youtube.com/shorts", "youtu.be/"} {
		if strings.Contains(u, marker) {
			return true
		}
	}
	return false
}

// YouTubeVideoID extracts the video identifier from a YouTube URL, or
// returns the empty string when no identifier can be found.
func YouTubeVideoID(u string) string {
	for _, re := range []*regexp.Regexp{ytShortLink, ytWatchLink, ytShorts} {
		if m := re.FindStringSubmatch(u); m != nil {
			return m[1]
		}
	}
	return ""
}

type timedText struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

// fetchTranscript pulls the video's English caption track from the
// timedtext endpoint. Videos without captions return an empty document,
// which is treated as an error so the caller can fall back.
func (f *Fetcher) fetchTranscript(ctx context.Context, videoID string) (Result, error) {
	u := fmt.Sprintf("https://www.youtube.com/api/timedtext?v=%s&lang=en", videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("failed to fetch transcript: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read transcript: %w", err)
	}

	text, err := parseTimedText(body)
	if err != nil {
		return Result{}, err
	}
	return Result{Title: "YouTube:" + videoID, Text: text}, nil
}

func parseTimedText(body []byte) (string, error) {
	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("failed to parse transcript: %w", err)
	}

	var lines []string
	for _, seg := range doc.Texts {
		if line := strings.TrimSpace(html.UnescapeString(seg.Value)); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", ErrNoText
	}
	return strings.Join(lines, "\n"), nil
}
