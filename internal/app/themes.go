package app

import "math/rand"

// themes is the round prompt catalog. Picked uniformly on start; a room
// keeps its theme for the whole round.
var themes = []string{
	"Late Night Drive",
	"Underwater Arcade",
	"Desert Sunrise",
	"Haunted Carousel",
	"Rooftop in the Rain",
	"8-bit Boss Fight",
	"Lazy Sunday Morning",
	"Neon Chase Scene",
	"Campfire on the Moon",
	"Elevator to Nowhere",
	"Secret Agent Tango",
	"Thunderstorm Lullaby",
}

func pickTheme() string {
	return themes[rand.Intn(len(themes))]
}
