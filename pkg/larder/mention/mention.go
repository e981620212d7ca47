package mention

import "strings"

// Mention is the parsed form of one raw textual reference to a food item.
// It exists only for the duration of a resolution request and is never
// persisted.
type Mention struct {
	OriginalText string
	Quantity     float64
	Unit         string
	FoodName     string // lowercase, singular, spaces collapsed to underscores
	Preparation  string
	Modifiers    []string
}

// Context returns the text used when embedding the mention for vector
// matching: the food name plus any preparation/modifier context.
func (m Mention) Context() string {
	parts := make([]string, 0, 2+len(m.Modifiers))
	parts = append(parts, strings.ReplaceAll(m.FoodName, "_", " "))
	if m.Preparation != "" {
		parts = append(parts, m.Preparation)
	}
	parts = append(parts, m.Modifiers...)
	return strings.Join(parts, " ")
}
