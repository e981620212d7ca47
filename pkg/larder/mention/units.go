package mention

// unitGrams maps canonical unit tokens to their approximate weight in grams
// for one unit of a typical ingredient. Volume units use water-equivalent
// densities, which is the convention the nutrition records follow.
var unitGrams = map[string]float64{
	"g":     1,
	"kg":    1000,
	"mg":    0.001,
	"oz":    28.35,
	"lb":    453.59,
	"ml":    1,
	"l":     1000,
	"cup":   240,
	"tbsp":  15,
	"tsp":   5,
	"pinch": 0.36,
	"slice": 25,
	"clove": 5,
	"can":   400,
	"whole": 100,
}

// unitAliases maps surface unit spellings to canonical unit tokens.
var unitAliases = map[string]string{
	"g":           "g",
	"gram":        "g",
	"grams":       "g",
	"kg":          "kg",
	"kilogram":    "kg",
	"kilograms":   "kg",
	"mg":          "mg",
	"oz":          "oz",
	"ounce":       "oz",
	"ounces":      "oz",
	"lb":          "lb",
	"lbs":         "lb",
	"pound":       "lb",
	"pounds":      "lb",
	"ml":          "ml",
	"milliliter":  "ml",
	"milliliters": "ml",
	"l":           "l",
	"liter":       "l",
	"liters":      "l",
	"litre":       "l",
	"litres":      "l",
	"cup":         "cup",
	"cups":        "cup",
	"tbsp":        "tbsp",
	"tablespoon":  "tbsp",
	"tablespoons": "tbsp",
	"tsp":         "tsp",
	"teaspoon":    "tsp",
	"teaspoons":   "tsp",
	"pinch":       "pinch",
	"pinches":     "pinch",
	"slice":       "slice",
	"slices":      "slice",
	"clove":       "clove",
	"cloves":      "clove",
	"can":         "can",
	"cans":        "can",
	"whole":       "whole",
}

// LookupUnit resolves a surface unit spelling to its canonical token.
func LookupUnit(word string) (string, bool) {
	u, ok := unitAliases[word]
	return u, ok
}

// Grams converts a mention's quantity+unit to grams. Unknown units fall
// back to the "whole" piece weight.
func Grams(m Mention) float64 {
	g, ok := unitGrams[m.Unit]
	if !ok {
		g = unitGrams["whole"]
	}
	return m.Quantity * g
}
