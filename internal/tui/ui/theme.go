package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	MenuKeyColor     tcell.Color
	TitleColor       tcell.Color
	OwnAuthorColor   tcell.Color
	AuthorColor      tcell.Color
	MutedColor       tcell.Color
	OnlineColor      tcell.Color
	OfflineColor     tcell.Color
	FlashInfoColor   tcell.Color
	FlashWarnColor   tcell.Color
	FlashErrColor    tcell.Color
}

// DefaultTheme returns a k9s-inspired dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorCadetBlue,
		BorderColor:      tcell.ColorDodgerBlue,
		BorderFocusColor: tcell.ColorLightSkyBlue,
		MenuKeyColor:     tcell.ColorDodgerBlue,
		TitleColor:       tcell.ColorFuchsia,
		OwnAuthorColor:   tcell.ColorOrange,
		AuthorColor:      tcell.ColorAqua,
		MutedColor:       tcell.ColorGray,
		OnlineColor:      tcell.ColorGreen,
		OfflineColor:     tcell.ColorOrangeRed,
		FlashInfoColor:   tcell.ColorNavajoWhite,
		FlashWarnColor:   tcell.ColorOrange,
		FlashErrColor:    tcell.ColorOrangeRed,
	}
}

// ColorTag renders c as a tview color tag value such as "#ff4500".
func ColorTag(c tcell.Color) string {
	return colorName(c)
}

func colorName(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}
