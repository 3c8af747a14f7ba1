package engine

import "math"

const (
	Level              = 50
	CriticalChance     = 1.0 / 16
	CriticalMultiplier = 1.5
	STABMultiplier     = 1.5
	MinVariance        = 0.85
	MaxVariance        = 1.0
)

const (
	msgNoEffect      = "It had no effect..."
	msgNotVery       = "It's not very effective..."
	msgSuper         = "It's super effective!"
	msgCriticalHit   = "A critical hit!"
	baseDamageFactor = float64(2*Level/5 + 2)
)

// Rolls carries the random draws a single hit depends on.
type Rolls struct {
	Critical bool
	Variance float64
}

type Hit struct {
	Damage        int
	Effectiveness float64
	Critical      bool
	STAB          bool
	Messages      []string
}

// ResolveDamage computes the damage of one landed move. It reads only the
// OriginalStats snapshots, never the live ones.
func ResolveDamage(attacker, defender *Combatant, move MoveDetail, rolls Rolls) Hit {
	eff := Effectiveness(move.Type, defender.Types)
	hit := Hit{Effectiveness: eff}
	if eff == 0 {
		hit.Messages = []string{msgNoEffect}
		return hit
	}
	switch {
	case eff < 1:
		hit.Messages = append(hit.Messages, msgNotVery)
	case eff > 1:
		hit.Messages = append(hit.Messages, msgSuper)
	}

	atk, def := attacker.OriginalStats.Attack, defender.OriginalStats.Defense
	if move.DamageClass == DamageClassSpecial {
		atk, def = attacker.OriginalStats.SpecialAttack, defender.OriginalStats.SpecialDefense
	}
	if def <= 0 {
		def = 1
	}

	base := (baseDamageFactor*float64(move.Power)*(float64(atk)/float64(def)))/50 + 2

	crit := 1.0
	if rolls.Critical {
		crit = CriticalMultiplier
		hit.Critical = true
		hit.Messages = append(hit.Messages, msgCriticalHit)
	}
	stab := 1.0
	if attacker.HasType(move.Type) {
		stab = STABMultiplier
		hit.STAB = true
	}

	hit.Damage = int(math.Floor(base * eff * crit * rolls.Variance * stab))
	return hit
}
