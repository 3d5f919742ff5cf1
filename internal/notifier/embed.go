// Package notifier renders a matched event into a chat embed and
// delivers it, debouncing pings per channel and cleaning up channels
// the chat gateway reports as gone.
package notifier

import (
	"fmt"

	"killfeed/internal/display"
	"killfeed/internal/enrichment"
	"killfeed/internal/filter"
	"killfeed/internal/killmail"
)

// Field is one embed field (name/value pair).
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Author is the embed's author block: a battle-report style summary
// line plus a link to the killmail.
type Author struct {
	Name    string
	URL     string
	IconURL string
}

// Footer carries the ISK value and EVE time summary line.
type Footer struct {
	Text    string
	IconURL string
}

// Embed is the rendered chat message body: title, author, thumbnail,
// color, description, attackers field, victim field, footer, timestamp.
type Embed struct {
	Title        string
	URL          string
	Author       Author
	ThumbnailURL string
	Color        string
	Description  string
	Fields       []Field
	Footer       Footer
	Timestamp    string
}

// iconURL builds the image-server URL for a ship/character/corp/alliance
// render. kind selects the asset path.
func iconURL(kind string, id int64) string {
	switch kind {
	case "character":
		return fmt.Sprintf("https://images.evetech.net/characters/%d/portrait", id)
	case "corporation":
		return fmt.Sprintf("https://images.evetech.net/corporations/%d/logo", id)
	case "alliance":
		return fmt.Sprintf("https://images.evetech.net/alliances/%d/logo", id)
	default:
		return fmt.Sprintf("https://images.evetech.net/types/%d/render", id)
	}
}

func zkillURL(killID int64) string {
	return fmt.Sprintf("https://zkillboard.com/kill/%d/", killID)
}

// formatCelestialLine renders the "on: <celestial>, <distance> away"
// location detail, switching from km to AU past 1.5M km.
func formatCelestialLine(cel enrichment.Celestial) string {
	distanceKM := cel.Distance / 1000.0
	distanceStr := fmt.Sprintf("%.1f km", distanceKM)
	if distanceKM > 1_500_000.0 {
		distanceStr = fmt.Sprintf("%.1f AU", distanceKM/149_597_870.7)
	}
	return fmt.Sprintf("**on:** [%s](https://zkillboard.com/location/%d/), %s away", cel.ItemName, cel.ItemID, distanceStr)
}

// buildTitle renders the kill/loss headline: green reads "Nx `group`
// killed a `victim ship`", red reads "`victim ship` died to Nx `group`".
func buildTitle(best *display.BestEntity, victimShipName string, count int) string {
	switch best.Color {
	case display.ColorGreen:
		return fmt.Sprintf("%dx `%s` killed a `%s`", count, best.Title, victimShipName)
	default:
		return fmt.Sprintf("`%s` died to %dx `%s`", victimShipName, count, best.Title)
	}
}

// buildAuthorIcon picks the green/tracked ship render, or for a loss
// falls back to the victim's ship render (most-common-attacker-ship
// refinement is left to the out-of-scope chat gateway's own summaries).
func buildAuthorIcon(best *display.BestEntity, victim killmail.Victim) string {
	if best.Color == display.ColorGreen {
		return iconURL("type", best.ShipTypeID)
	}
	return iconURL("type", victim.ShipTypeID)
}

func footerIcon(best *display.BestEntity, victim killmail.Victim) string {
	if best.AllianceID != 0 {
		return iconURL("alliance", best.AllianceID)
	}
	if best.CorpID != 0 {
		return iconURL("corporation", best.CorpID)
	}
	if victim.AllianceID != nil {
		return iconURL("alliance", *victim.AllianceID)
	}
	if victim.CorporationID != nil {
		return iconURL("corporation", *victim.CorporationID)
	}
	return iconURL("type", victim.ShipTypeID)
}

// BuildEmbed renders the full embed for a matched event. breakdown,
// celestialLine and rangeFrom are pre-rendered by the caller since they
// need enrichment access; either may be empty.
func BuildEmbed(event *killmail.Event, result *filter.MatchResult, best *display.BestEntity, fleet display.FleetComposition, systemName, regionName, victimShipName, victimCharDisplay, breakdown, celestialLine, rangeFrom string) *Embed {
	count := len(result.MatchedAttackers)

	title := buildTitle(best, victimShipName, count)
	author := Author{
		Name:    fmt.Sprintf("BR: %s in %s (%s)", best.Title, systemName, regionName),
		URL:     zkillURL(event.KillID),
		IconURL: buildAuthorIcon(best, event.Victim),
	}

	color := "dark_green"
	if best.Color == display.ColorRed {
		color = "red"
	}

	description := fmt.Sprintf("**in:** %s (%s)", systemName, regionName)
	if celestialLine != "" {
		description += "\n" + celestialLine
	}
	if result.LYRange != nil && result.LYRange.Distance > 0 {
		description += fmt.Sprintf("\n**range:** %.1f LY from %s", result.LYRange.Distance, rangeFrom)
	}

	attackersValue := fleet.FormatOverall()
	if breakdown != "" {
		attackersValue += "\n```\n" + breakdown + "```"
	}

	fields := []Field{
		{Name: fmt.Sprintf("(%d) Attackers Involved", len(event.Attackers)), Value: attackersValue},
		{Name: "Victim", Value: victimCharDisplay},
	}

	footer := Footer{
		Text:    fmt.Sprintf("Value: %.2f ISK • EVETime: %s", event.ZKB.TotalValue, event.KillmailTime.Format("02/01/2006, 15:04")),
		IconURL: footerIcon(best, event.Victim),
	}

	return &Embed{
		Title:        title,
		URL:          zkillURL(event.KillID),
		Author:       author,
		ThumbnailURL: iconURL("type", event.Victim.ShipTypeID),
		Color:        color,
		Description:  description,
		Fields:       fields,
		Footer:       footer,
		Timestamp:    event.KillmailTime.Format("2006-01-02T15:04:05Z07:00"),
	}
}
