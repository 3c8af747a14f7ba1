package engine

import (
	"math/rand/v2"
	"time"
)

// Roller is the only source of randomness in a battle. *rand.Rand satisfies it;
// tests script the draws.
type Roller interface {
	Float64() float64
}

// NewRoller returns a PCG-backed roller. Zero seeds from the clock.
func NewRoller(seed uint64) Roller {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

// RollAccuracy draws uniformly from [0,100).
func RollAccuracy(r Roller) float64 {
	return r.Float64() * 100
}

// Hits reports whether an accuracy roll lands. Accuracy 0 never hits and
// accuracy 100 always does.
func Hits(roll float64, accuracy int) bool {
	return roll < float64(accuracy)
}

// RollDamage draws the critical-hit and variance rolls, in that order.
func RollDamage(r Roller) Rolls {
	crit := r.Float64() < CriticalChance
	variance := MinVariance + r.Float64()*(MaxVariance-MinVariance)
	return Rolls{Critical: crit, Variance: variance}
}
