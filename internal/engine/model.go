package engine

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxMoves is the number of move slots a combatant carries into battle.
const MaxMoves = 4

type DamageClass string

const (
	DamageClassPhysical DamageClass = "physical"
	DamageClassSpecial  DamageClass = "special"
)

// Stats is a base stat block. JSON keys follow the roster provider's stat names.
type Stats struct {
	HP             int `json:"hp"`
	Attack         int `json:"attack"`
	Defense        int `json:"defense"`
	SpecialAttack  int `json:"special-attack"`
	SpecialDefense int `json:"special-defense"`
	Speed          int `json:"speed"`
}

type MoveDetail struct {
	Power       int         `json:"power"`
	Accuracy    int         `json:"accuracy"`
	Type        string      `json:"type"`
	DamageClass DamageClass `json:"damageClass"`
}

// FallbackMoveDetail is used whenever a move lookup fails.
var FallbackMoveDetail = MoveDetail{
	Power:       60,
	Accuracy:    100,
	Type:        "normal",
	DamageClass: DamageClassPhysical,
}

// Normalized clamps a looked-up detail into the ranges the resolver expects.
func (d MoveDetail) Normalized() MoveDetail {
	if d.Power < 0 {
		d.Power = 0
	}
	d.Accuracy = min(max(d.Accuracy, 0), 100)
	d.Type = strings.ToLower(strings.TrimSpace(d.Type))
	if d.Type == "" {
		d.Type = FallbackMoveDetail.Type
	}
	if d.DamageClass != DamageClassSpecial {
		d.DamageClass = DamageClassPhysical
	}
	return d
}

// Move starts out as a name plus lookup key. Detail is filled the first time
// the move is used in a turn.
type Move struct {
	Name   string      `json:"name"`
	URL    string      `json:"url"`
	Detail *MoveDetail `json:"detail,omitempty"`
}

type Combatant struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Stats         Stats    `json:"stats"`
	Types         []string `json:"types"`
	Sprite        string   `json:"sprite,omitempty"`
	Moves         []Move   `json:"moves"`
	CurrentHP     int      `json:"currentHp"`
	OriginalStats Stats    `json:"originalStats"`
}

// Clone returns a deep copy so callers never share move or type slices.
func (c Combatant) Clone() Combatant {
	out := c
	out.Types = slices.Clone(c.Types)
	out.Moves = make([]Move, len(c.Moves))
	for i, m := range c.Moves {
		out.Moves[i] = m
		if m.Detail != nil {
			d := *m.Detail
			out.Moves[i].Detail = &d
		}
	}
	return out
}

// prepare snapshots the base stats and fills hp. Called once at battle start.
func (c *Combatant) prepare() {
	c.OriginalStats = c.Stats
	c.CurrentHP = c.OriginalStats.HP
	if len(c.Moves) > MaxMoves {
		c.Moves = c.Moves[:MaxMoves]
	}
}

func (c *Combatant) HasType(t string) bool {
	return slices.Contains(c.Types, t)
}

// ApplyDamage reduces CurrentHP by amount, flooring at zero.
func (c *Combatant) ApplyDamage(amount int) {
	if amount <= 0 {
		return
	}
	c.CurrentHP -= amount
	if c.CurrentHP < 0 {
		c.CurrentHP = 0
	}
}

func (c *Combatant) Fainted() bool { return c.CurrentHP <= 0 }

// DisplayName turns provider keys like "thunder-punch" into "Thunder Punch".
func DisplayName(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "-", " "))
}
