package notifier

import (
	"fmt"
	"strconv"
	"strings"
)

// Named embed colors as Discord clients know them.
var namedColors = map[string]int{
	"DEFAULT":             0x000000,
	"WHITE":               0xFFFFFF,
	"AQUA":                0x1ABC9C,
	"GREEN":               0x57F287,
	"BLUE":                0x3498DB,
	"YELLOW":              0xFEE75C,
	"PURPLE":              0x9B59B6,
	"LUMINOUS_VIVID_PINK": 0xE91E63,
	"FUCHSIA":             0xEB459E,
	"GOLD":                0xF1C40F,
	"ORANGE":              0xE67E22,
	"RED":                 0xED4245,
	"GREY":                0x95A5A6,
	"NAVY":                0x34495E,
	"DARK_AQUA":           0x11806A,
	"DARK_GREEN":          0x1F8B4C,
	"DARK_BLUE":           0x206694,
	"DARK_PURPLE":         0x71368A,
	"DARK_GOLD":           0xC27C0E,
	"DARK_ORANGE":         0xA84300,
	"DARK_RED":            0x992D22,
	"DARK_GREY":           0x979C9F,
	"LIGHT_GREY":          0xBCC0C0,
	"DARK_NAVY":           0x2C3E50,
	"BLURPLE":             0x5865F2,
	"GREYPLE":             0x99AAB5,
	"NOT_QUITE_BLACK":     0x23272A,
}

// ResolveColor accepts a color name (GREEN, dark_red) or a hex value
// (#57F287, 0x57F287) and returns it as an integer.
func ResolveColor(tag string) (int, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return namedColors["DEFAULT"], nil
	}

	if c, ok := namedColors[strings.ToUpper(tag)]; ok {
		return c, nil
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(tag), "#"), "0x")
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || v > 0xFFFFFF {
		return 0, fmt.Errorf("unknown embed color %q", tag)
	}
	return int(v), nil
}
