package student

import "fmt"

type Student struct {
	ID          string `json:"id" firestore:"-"`
	DisplayName string `json:"display_name" firestore:"display_name"`
	Age         *int   `json:"age" firestore:"age"`
	Color       Color  `json:"color" firestore:"color"`
}

// Color общий для профилей и ритмов
type Color string

const ColorGreen Color = "green"
const ColorYellow Color = "yellow"
const ColorPink Color = "pink"
const ColorBlue Color = "blue"
const ColorOrange Color = "orange"

var Colors = []Color{ColorGreen, ColorYellow, ColorPink, ColorBlue, ColorOrange}

func (c Color) Valid() bool {
	for _, known := range Colors {
		if c == known {
			return true
		}
	}
	return false
}

func ParseColor(raw string) (Color, error) {
	c := Color(raw)
	if !c.Valid() {
		return "", fmt.Errorf("unknown color %q", raw)
	}
	return c, nil
}
