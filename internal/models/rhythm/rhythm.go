package rhythm

import (
	"fmt"

	"kairos/internal/models/student"
)

type Rhythm struct {
	ID    string        `json:"id" firestore:"-"`
	Name  string        `json:"name" firestore:"name"`
	Icon  Icon          `json:"icon" firestore:"icon"`
	Color student.Color `json:"color" firestore:"color"`
}

type Icon string

const (
	IconCoffee   Icon = "Coffee"
	IconLeaf     Icon = "Leaf"
	IconSun      Icon = "Sun"
	IconBookOpen Icon = "BookOpen"
	IconUsers    Icon = "Users"
	IconSparkles Icon = "Sparkles"
	IconZap      Icon = "Zap"
	IconBrain    Icon = "Brain"
)

var Icons = []Icon{IconCoffee, IconLeaf, IconSun, IconBookOpen, IconUsers, IconSparkles, IconZap, IconBrain}

func (i Icon) Valid() bool {
	for _, known := range Icons {
		if i == known {
			return true
		}
	}
	return false
}

func ParseIcon(raw string) (Icon, error) {
	i := Icon(raw)
	if !i.Valid() {
		return "", fmt.Errorf("unknown icon %q", raw)
	}
	return i, nil
}
