// Package inmet reads the INMET CAP alert RSS feed and the CAP documents its
// items link to.
package inmet

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/weather-station-api/internal/adapter/upstream"
	"github.com/couchcryptid/weather-station-api/internal/domain"
	"golang.org/x/text/encoding/charmap"
)

// DefaultFeedURL is the public INMET alert feed.
const DefaultFeedURL = "https://alerts.inmet.gov.br/cap_12/rss/alert-as.rss"

// placesParameter names the CAP parameter holding the affected municipalities.
const placesParameter = "Municipios"

// Client implements domain.AlertFeed and domain.AlertDetails.
type Client struct {
	fetcher upstream.Fetcher
	feedURL string
}

// NewClient creates a client reading feedURL.
func NewClient(fetcher upstream.Fetcher, feedURL string) *Client {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	return &Client{fetcher: fetcher, feedURL: feedURL}
}

// FetchFeed returns every item of the RSS feed.
func (c *Client) FetchFeed(ctx context.Context) ([]domain.FeedEntry, error) {
	body, err := c.fetcher.Get(ctx, c.feedURL)
	if err != nil {
		return nil, err
	}
	var doc rssDocument
	if err := decode(body, &doc); err != nil {
		return nil, fmt.Errorf("decode alert feed: %w: %w", domain.ErrUpstreamError, err)
	}

	entries := make([]domain.FeedEntry, 0, len(doc.Channel.Items))
	for _, it := range doc.Channel.Items {
		entries = append(entries, it.toEntry())
	}
	return entries, nil
}

// FetchPlaces returns the Municipios parameter of the CAP document at link,
// or "" when the document carries none.
func (c *Client) FetchPlaces(ctx context.Context, link string) (string, error) {
	if strings.TrimSpace(link) == "" {
		return "", fmt.Errorf("alert has no detail link: %w", domain.ErrUpstreamError)
	}
	body, err := c.fetcher.Get(ctx, link)
	if err != nil {
		return "", err
	}
	var doc capAlert
	if err := decode(body, &doc); err != nil {
		return "", fmt.Errorf("decode CAP document: %w: %w", domain.ErrUpstreamError, err)
	}
	for _, info := range doc.Info {
		for _, p := range info.Parameters {
			if strings.EqualFold(strings.TrimSpace(p.ValueName), placesParameter) {
				return strings.TrimSpace(p.Value), nil
			}
		}
	}
	return "", nil
}

func decode(body []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charsetReader
	return dec.Decode(v)
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "utf-8", "utf8":
		return input, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", label)
}

// RSS and CAP document types. Element names match on local name, so the
// cap: namespace prefix on item fields is ignored.

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Event       string `xml:"event"`
	Severity    string `xml:"severity"`
	AreaDesc    string `xml:"areaDesc"`
	Effective   string `xml:"effective"`
	Onset       string `xml:"onset"`
	Expires     string `xml:"expires"`
	Ends        string `xml:"ends"`
	Headline    string `xml:"headline"`
}

func (it rssItem) toEntry() domain.FeedEntry {
	expires := it.Expires
	if strings.TrimSpace(expires) == "" {
		expires = it.Ends
	}
	onset := it.Onset
	if strings.TrimSpace(onset) == "" {
		onset = it.Effective
	}
	return domain.FeedEntry{
		Title:       strings.TrimSpace(it.Title),
		Link:        strings.TrimSpace(it.Link),
		Description: strings.TrimSpace(it.Description),
		PubDate:     strings.TrimSpace(it.PubDate),
		Event:       strings.TrimSpace(it.Event),
		Severity:    strings.TrimSpace(it.Severity),
		AreaDesc:    strings.TrimSpace(it.AreaDesc),
		Effective:   strings.TrimSpace(it.Effective),
		Onset:       strings.TrimSpace(onset),
		Expires:     strings.TrimSpace(expires),
		Headline:    strings.TrimSpace(it.Headline),
	}
}

type capAlert struct {
	Info []struct {
		Parameters []struct {
			ValueName string `xml:"valueName"`
			Value     string `xml:"value"`
		} `xml:"parameter"`
	} `xml:"info"`
}
