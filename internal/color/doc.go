// Package color provides terminal color detection and theming for tunnelctl.
//
// Styles follow a small semantic palette (success, error, warning, muted,
// accent) built from lipgloss adaptive colors, so output reads well on dark
// and light terminals. Initialize selects the background explicitly;
// Disable turns every style into plain text, which is what NO_COLOR and
// non-terminal writers get.
package color
