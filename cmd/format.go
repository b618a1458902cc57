package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/ordframe/pkg/ordinals"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)

	rarityStyles = map[string]lipgloss.Style{
		"uncommon":  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		"rare":      lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		"epic":      lipgloss.NewStyle().Foreground(lipgloss.Color("129")),
		"legendary": lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"mythic":    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}

	titleCaser = cases.Title(language.English)
)

// rarityLabel title-cases a sat rarity ("black_uncommon" -> "Black Uncommon").
func rarityLabel(rarity string) string {
	return titleCaser.String(strings.ReplaceAll(rarity, "_", " "))
}

func styledRarity(rarity string) string {
	label := rarityLabel(rarity)
	if style, ok := rarityStyles[strings.ToLower(rarity)]; ok {
		return style.Render(label)
	}
	return label
}

// formatOrdinalLine renders one catalog row for `ordframe list`.
func formatOrdinalLine(o ordinals.Ordinal, selected bool) string {
	mark := "  "
	if selected {
		mark = selectedStyle.Render("✔ ")
	}
	ov := o.Overlay()
	line := fmt.Sprintf("%s%-18s %s  %s  %s", mark, ov.Title, styledRarity(ov.Rarity),
		metaStyle.Render(ov.Type), metaStyle.Render(ov.Size))
	if ov.Collection != "" {
		line += "  " + metaStyle.Render(ov.Collection)
	}
	return line + "\n    " + metaStyle.Render(o.ID)
}

// formatTime formats a time relative to now or as an absolute date
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < 24*time.Hour {
		if diff < time.Hour {
			minutes := int(diff.Minutes())
			if minutes < 1 {
				return "just now"
			}
			return fmt.Sprintf("%d minutes ago", minutes)
		}
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	}
	if diff < 7*24*time.Hour {
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	}
	if t.Year() == now.Year() {
		return t.Format("Jan 2, 15:04")
	}
	return t.Format("Jan 2, 2006")
}
