package protomaps

import "sort"

// Theme is the palette for one basemap flavor.
type Theme struct {
	Name       string
	Sprite     string // sprite flavor on the basemaps asset host
	Background string
	Earth      string
	Park       string
	Wood       string
	Water      string
	Buildings  string
	Boundaries string
	Minor      string
	Major      string
	Highway    string
	Labels     string
	Halo       string
	Shadow     string // hillshade shadow
	Highlight  string // hillshade highlight
}

var themes = map[string]Theme{
	"light": {
		Name: "light", Sprite: "light",
		Background: "#cccccc", Earth: "#e2dfda", Park: "#9cd3b4", Wood: "#a0d9a0",
		Water: "#80deea", Buildings: "#cccccc", Boundaries: "#adadad",
		Minor: "#ffffff", Major: "#ffffff", Highway: "#ffffff",
		Labels: "#5c5c5c", Halo: "#ffffff", Shadow: "#5c5c5c", Highlight: "#ffffff",
	},
	"dark": {
		Name: "dark", Sprite: "dark",
		Background: "#34373d", Earth: "#1f1f1f", Park: "#232325", Wood: "#202121",
		Water: "#34373d", Buildings: "#111111", Boundaries: "#707070",
		Minor: "#292929", Major: "#292929", Highway: "#474747",
		Labels: "#9e9e9e", Halo: "#1f1f1f", Shadow: "#000000", Highlight: "#4a4a4a",
	},
	"white": {
		Name: "white", Sprite: "white",
		Background: "#ffffff", Earth: "#ffffff", Park: "#f6f6f6", Wood: "#fafafa",
		Water: "#dcdcdc", Buildings: "#efefef", Boundaries: "#adadad",
		Minor: "#ebebeb", Major: "#ebebeb", Highway: "#ebebeb",
		Labels: "#6b6b6b", Halo: "#ffffff", Shadow: "#9e9e9e", Highlight: "#ffffff",
	},
	"grayscale": {
		Name: "grayscale", Sprite: "grayscale",
		Background: "#a3a3a3", Earth: "#cccccc", Park: "#c2c2c2", Wood: "#c8c8c8",
		Water: "#a3a3a3", Buildings: "#e0e0e0", Boundaries: "#5c5c5c",
		Minor: "#ebebeb", Major: "#f5f5f5", Highway: "#ffffff",
		Labels: "#2b2b2b", Halo: "#ffffff", Shadow: "#5c5c5c", Highlight: "#ffffff",
	},
	"black": {
		Name: "black", Sprite: "black",
		Background: "#2b2b2b", Earth: "#141414", Park: "#181818", Wood: "#1a1a1a",
		Water: "#333333", Buildings: "#0a0a0a", Boundaries: "#707070",
		Minor: "#1f1f1f", Major: "#1f1f1f", Highway: "#292929",
		Labels: "#8a8a8a", Halo: "#141414", Shadow: "#000000", Highlight: "#333333",
	},
	"contrast": {
		Name: "contrast", Sprite: "black",
		Background: "#000000", Earth: "#0d0d0d", Park: "#1b3a1b", Wood: "#143014",
		Water: "#1a4d80", Buildings: "#3d3d3d", Boundaries: "#ffd400",
		Minor: "#8c8c8c", Major: "#d9d9d9", Highway: "#ffffff",
		Labels: "#ffffff", Halo: "#000000", Shadow: "#000000", Highlight: "#9e9e9e",
	},
}

// LookupTheme returns the named theme.
func LookupTheme(name string) (Theme, bool) {
	t, ok := themes[name]
	return t, ok
}

// ThemeNames lists the available themes in sorted order.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
