package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// discordAPIBase is the default Discord bot REST API root. The actual
// interaction dispatch / slash-command registration lives in the
// out-of-scope chat gateway; this is only the one outbound call this
// core makes directly: posting a rendered message to a channel.
const discordAPIBase = "https://discord.com/api/v10"

// DiscordGateway implements ChatGateway over Discord's bot REST API
// (Authorization: Bot header), surfacing the HTTP status on failure so
// the notifier can classify 403/404 as channel cleanup.
type DiscordGateway struct {
	httpClient *http.Client
	botToken   string
	baseURL    string
}

// NewDiscordGateway builds a DiscordGateway. httpClient should already
// be instrumented the way the rest of the process's outbound clients
// are (otelhttp transport).
func NewDiscordGateway(httpClient *http.Client, botToken string) *DiscordGateway {
	return &DiscordGateway{httpClient: httpClient, botToken: botToken, baseURL: discordAPIBase}
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type discordEmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	URL         string              `json:"url,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Author      *discordEmbedAuthor `json:"author,omitempty"`
	Thumbnail   *struct {
		URL string `json:"url"`
	} `json:"thumbnail,omitempty"`
	Fields    []discordEmbedField `json:"fields,omitempty"`
	Footer    *discordEmbedFooter `json:"footer,omitempty"`
	Timestamp string              `json:"timestamp,omitempty"`
}

type createMessagePayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

// discordColors maps the embed's abstract color name to a Discord
// integer color. Anything unrecognized falls back to a neutral gray.
var discordColors = map[string]int{
	"dark_green": 0x1F8B4C,
	"red":        0xE74C3C,
}

// SendMessage posts content + embed to channelID.
func (g *DiscordGateway) SendMessage(ctx context.Context, channelID string, content string, embed *Embed) error {
	payload := createMessagePayload{Content: content}
	if embed != nil {
		payload.Embeds = []discordEmbed{toDiscordEmbed(embed)}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord gateway: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", g.baseURL, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+g.botToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "killfeed/1.0")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord gateway: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	return &GatewayError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", string(respBody))}
}

func toDiscordEmbed(e *Embed) discordEmbed {
	de := discordEmbed{
		Title:       e.Title,
		URL:         e.URL,
		Description: e.Description,
		Color:       discordColors[e.Color],
		Timestamp:   e.Timestamp,
	}
	if e.Author.Name != "" {
		de.Author = &discordEmbedAuthor{Name: e.Author.Name, URL: e.Author.URL, IconURL: e.Author.IconURL}
	}
	if e.ThumbnailURL != "" {
		de.Thumbnail = &struct {
			URL string `json:"url"`
		}{URL: e.ThumbnailURL}
	}
	for _, f := range e.Fields {
		de.Fields = append(de.Fields, discordEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.Footer.Text != "" {
		de.Footer = &discordEmbedFooter{Text: e.Footer.Text, IconURL: e.Footer.IconURL}
	}
	return de
}
