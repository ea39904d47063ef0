package ui

import (
	"spilljoin/pkg/ui/base"

	"github.com/charmbracelet/lipgloss"
)

var (
	palette = base.DarkPalette

	primaryColor   = palette.Primary
	secondaryColor = palette.Secondary
	accentColor    = palette.Accent
	errorColor     = palette.Error

	bgDark  = lipgloss.Color("#0F172A")
	bgLight = lipgloss.Color("#334155")

	textPrimary   = lipgloss.Color("#F8FAFC")
	textSecondary = lipgloss.Color("#CBD5E1")
	textMuted     = palette.Muted
)

var (
	appStyle = lipgloss.NewStyle().
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#8B5CF6")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 2).
			MarginBottom(1)

	badgeStyle = lipgloss.NewStyle().
			Background(secondaryColor).
			Foreground(bgDark).
			Bold(true).
			Padding(0, 1).
			MarginRight(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(textSecondary)

	successStyle = lipgloss.NewStyle().
			Background(accentColor).
			Foreground(bgDark).
			Bold(true).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Background(errorColor).
			Foreground(textPrimary).
			Bold(true).
			Padding(0, 1)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(textMuted).
			Width(16)

	valueStyle = lipgloss.NewStyle().
			Foreground(textPrimary)

	ruleStyle = lipgloss.NewStyle().
			Foreground(bgLight)
)
