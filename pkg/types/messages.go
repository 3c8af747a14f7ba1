// Package types names the events exchanged over the battle WebSocket.
//
// Every frame is a JSON object with a "type" field. Server frames carry
// their payload under "data".
package types

// Client -> Server
//
//	findMatch:      {name, action?}        action "rematch" is treated as "find"
//	pokemonChosen:  {pokemonId} or {pokemon: {id}}
//	playerMove:     {moveIndex}
//	exitGame:       {}
const (
	FindMatch     = "findMatch"
	PokemonChosen = "pokemonChosen"
	PlayerMove    = "playerMove"
	ExitGame      = "exitGame"
)

// Server -> Client
//
//	matchStatus:          {status: "searching"|"found", opponent?}
//	pokemonSelection:     {options, message}
//	opponentChosePokemon: no payload
//	battleStart:          {roomId, yourPokemon, opponentPokemon, currentTurn, opponentName}
//	gameUpdate:           {roomId, player1, player2, pokemon1, pokemon2, currentTurn, battleLog, gameOver, winner?}
//	opponentDisconnected: no payload
//	opponentLeftGame:     no payload
//	exitConfirmed:        no payload
//	error:                {message, currentTurn?}
const (
	MatchStatus          = "matchStatus"
	PokemonSelection     = "pokemonSelection"
	OpponentChosePokemon = "opponentChosePokemon"
	BattleStart          = "battleStart"
	GameUpdate           = "gameUpdate"
	OpponentDisconnected = "opponentDisconnected"
	OpponentLeftGame     = "opponentLeftGame"
	ExitConfirmed        = "exitConfirmed"
	Error                = "error"
)

const (
	StatusSearching = "searching"
	StatusFound     = "found"
)

const (
	PromptChoose           = "Choose your Pokemon!"
	PromptInvalidSelection = "Invalid selection. Choose your Pokemon!"
)
