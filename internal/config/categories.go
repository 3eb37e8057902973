package config

// Command categories, in the order help lists them.
const (
	CategoryGeneral    = "🕯️ General"
	CategoryModeration = "🛡️ Moderation"
	CategorySettings   = "⚙️ Settings"
	CategoryOwner      = "🛠️ Maintenance"
)

var CategoryWeights = map[string]int{
	CategoryGeneral:    0,
	CategoryModeration: 30,
	CategorySettings:   50,
	CategoryOwner:      60,
}

// CategoryWeight returns the sort weight of category; unknown categories sort last.
func CategoryWeight(category string) int {
	if w, ok := CategoryWeights[category]; ok {
		return w
	}
	return 100
}
