package ses

import "math/rand/v2"

// pokemonNames backs the random session-name assignment: a register()
// with an empty name gets one of these.
var pokemonNames = []string{
	"bulbasaur", "charmander", "squirtle", "pikachu", "eevee", "snorlax",
	"gengar", "dragonite", "mewtwo", "lucario", "gardevoir", "umbreon",
	"absol", "tyranitar", "metagross", "sylveon", "garchomp", "zoroark",
	"greninja", "lapras", "ninetales", "arcanine", "machamp", "gyarados",
}

// randomPokemonName returns one random entry from pokemonNames.
func randomPokemonName() string {
	return pokemonNames[rand.IntN(len(pokemonNames))]
}
