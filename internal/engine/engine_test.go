package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRoller replays vals in a loop.
type scriptedRoller struct {
	vals []float64
	i    int
}

func (r *scriptedRoller) Float64() float64 {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

// hitRolls: accuracy 0 (always lands), no crit, variance 1.0.
func hitRolls() *scriptedRoller { return &scriptedRoller{vals: []float64{0, 0.5, 1.0}} }

func tackle() Move {
	return Move{Name: "tackle", URL: "https://pokeapi.test/move/33/", Detail: &MoveDetail{
		Power: 80, Accuracy: 100, Type: "normal", DamageClass: DamageClassPhysical,
	}}
}

func pikachu() Combatant {
	return Combatant{
		ID: 25, Name: "pikachu", Types: []string{"electric"},
		Stats: Stats{HP: 100, Attack: 100, Defense: 50, SpecialAttack: 100, SpecialDefense: 50, Speed: 90},
		Moves: []Move{tackle()},
	}
}

func bulbasaur() Combatant {
	return Combatant{
		ID: 1, Name: "bulbasaur", Types: []string{"grass", "poison"},
		Stats: Stats{HP: 200, Attack: 100, Defense: 50, SpecialAttack: 100, SpecialDefense: 50, Speed: 50},
		Moves: []Move{tackle()},
	}
}

var (
	alice = Player{ID: "p1", Name: "Alice"}
	bob   = Player{ID: "p2", Name: "Bob"}
)

func newTestBattle(c1, c2 Combatant, deps Deps) *Battle {
	if deps.Roller == nil {
		deps.Roller = hitRolls()
	}
	return NewBattle("battle_test", alice, bob, c1, c2, deps)
}

func TestResolveDamage(t *testing.T) {
	physical := func(moveType string, power int) MoveDetail {
		return MoveDetail{Power: power, Accuracy: 100, Type: moveType, DamageClass: DamageClassPhysical}
	}
	attacker := func(types ...string) *Combatant {
		c := &Combatant{Types: types, Stats: Stats{Attack: 100, SpecialAttack: 10}}
		c.prepare()
		return c
	}
	defender := func(types ...string) *Combatant {
		c := &Combatant{Types: types, Stats: Stats{HP: 500, Defense: 50, SpecialDefense: 200}}
		c.prepare()
		return c
	}

	cases := []struct {
		name     string
		atk      *Combatant
		def      *Combatant
		move     MoveDetail
		rolls    Rolls
		want     int
		wantMsgs []string
	}{
		{
			name:  "neutral hit, no modifiers",
			atk:   attacker("fire"),
			def:   defender("water"),
			move:  physical("normal", 80),
			rolls: Rolls{Variance: 1.0},
			want:  72,
		},
		{
			name:  "same type bonus",
			atk:   attacker("normal"),
			def:   defender("water"),
			move:  physical("normal", 80),
			rolls: Rolls{Variance: 1.0},
			want:  108,
		},
		{
			name:     "critical hit with same type bonus",
			atk:      attacker("normal"),
			def:      defender("water"),
			move:     physical("normal", 80),
			rolls:    Rolls{Critical: true, Variance: 1.0},
			want:     162,
			wantMsgs: []string{msgCriticalHit},
		},
		{
			name:     "super effective",
			atk:      attacker("water"),
			def:      defender("grass"),
			move:     physical("fire", 80),
			rolls:    Rolls{Variance: 1.0},
			want:     144,
			wantMsgs: []string{msgSuper},
		},
		{
			name:     "dual type multiplies",
			atk:      attacker("water"),
			def:      defender("grass", "bug"),
			move:     physical("fire", 80),
			rolls:    Rolls{Variance: 1.0},
			want:     289,
			wantMsgs: []string{msgSuper},
		},
		{
			name:     "not very effective",
			atk:      attacker("normal"),
			def:      defender("water"),
			move:     physical("fire", 80),
			rolls:    Rolls{Variance: 1.0},
			want:     36,
			wantMsgs: []string{msgNotVery},
		},
		{
			name:  "minimum variance",
			atk:   attacker("fire"),
			def:   defender("water"),
			move:  physical("normal", 80),
			rolls: Rolls{Variance: MinVariance},
			want:  61,
		},
		{
			name:     "immune ignores power and crit",
			atk:      attacker("normal"),
			def:      defender("ghost"),
			move:     physical("normal", 250),
			rolls:    Rolls{Critical: true, Variance: 1.0},
			want:     0,
			wantMsgs: []string{msgNoEffect},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hit := ResolveDamage(tc.atk, tc.def, tc.move, tc.rolls)
			if hit.Damage != tc.want {
				t.Fatalf("damage: got %d, want %d", hit.Damage, tc.want)
			}
			assert.Equal(t, tc.wantMsgs, hit.Messages)
		})
	}
}

func TestResolveDamage_SpecialUsesSpecialStats(t *testing.T) {
	atk := &Combatant{Stats: Stats{Attack: 1, SpecialAttack: 100}}
	def := &Combatant{Stats: Stats{Defense: 500, SpecialDefense: 50}}
	atk.prepare()
	def.prepare()

	hit := ResolveDamage(atk, def, MoveDetail{Power: 80, Type: "psychic", DamageClass: DamageClassSpecial}, Rolls{Variance: 1.0})
	require.Equal(t, 72, hit.Damage)
}

func TestResolveDamage_ReadsOriginalStats(t *testing.T) {
	atk := pikachu()
	def := bulbasaur()
	atk.prepare()
	def.prepare()
	atk.Stats.Attack = 1000
	def.Stats.Defense = 1

	hit := ResolveDamage(&atk, &def, *tackle().Detail, Rolls{Variance: 1.0})
	require.Equal(t, 72, hit.Damage)
}

func TestEffectiveness(t *testing.T) {
	cases := []struct {
		move  string
		types []string
		want  float64
	}{
		{"electric", []string{"water", "flying"}, 4},
		{"electric", []string{"ground"}, 0},
		{"fighting", []string{"normal", "ghost"}, 0},
		{"grass", []string{"fire"}, 0.5},
		{"shadow", []string{"fire"}, 1},
		{"normal", nil, 1},
	}
	for _, tc := range cases {
		if got := Effectiveness(tc.move, tc.types); got != tc.want {
			t.Fatalf("Effectiveness(%s, %v): got %v, want %v", tc.move, tc.types, got, tc.want)
		}
	}
}

func TestFirstTurn(t *testing.T) {
	cases := []struct {
		name   string
		s1, s2 int
		want   int
	}{
		{"player one faster", 90, 50, 0},
		{"tie goes to player one", 70, 70, 0},
		{"player two faster", 40, 41, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FirstTurn(Stats{Speed: tc.s1}, Stats{Speed: tc.s2}); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNewBattle_SnapshotsStats(t *testing.T) {
	c1 := pikachu()
	c1.Moves = append(c1.Moves, tackle(), tackle(), tackle(), tackle())
	b := newTestBattle(c1, bulbasaur(), Deps{})

	require.Equal(t, alice.ID, b.CurrentTurn)
	require.Equal(t, StatusAwaitingMove, b.Status)
	p := b.Combatants[0]
	assert.Equal(t, p.Stats, p.OriginalStats)
	assert.Equal(t, 100, p.CurrentHP)
	assert.Len(t, p.Moves, MaxMoves)
	assert.Len(t, b.Log, 1)

	// caller's copy is untouched
	assert.Zero(t, c1.CurrentHP)
}

func TestProcessMove_RejectsOutOfTurn(t *testing.T) {
	b := newTestBattle(pikachu(), bulbasaur(), Deps{})
	before := b.Snapshot()

	_, err := b.ProcessMove(context.Background(), bob.ID, 0)
	if !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("want ErrNotYourTurn, got %v", err)
	}

	after := b.Snapshot()
	assert.Equal(t, before.CurrentTurn, after.CurrentTurn)
	assert.Equal(t, before.Pokemon1.CurrentHP, after.Pokemon1.CurrentHP)
	assert.Equal(t, before.Pokemon2.CurrentHP, after.Pokemon2.CurrentHP)
	assert.Len(t, after.BattleLog, len(before.BattleLog))
}

func TestProcessMove_RejectsInvalidIndex(t *testing.T) {
	b := newTestBattle(pikachu(), bulbasaur(), Deps{})
	for _, idx := range []int{-1, 1, MaxMoves} {
		_, err := b.ProcessMove(context.Background(), alice.ID, idx)
		require.ErrorIs(t, err, ErrInvalidMove, "index %d", idx)
	}
	require.Equal(t, alice.ID, b.CurrentTurn)
	require.Len(t, b.Log, 1)
}

func TestProcessMove_UnknownPlayer(t *testing.T) {
	b := newTestBattle(pikachu(), bulbasaur(), Deps{})
	_, err := b.ProcessMove(context.Background(), "stranger", 0)
	require.ErrorIs(t, err, ErrNotInBattle)
}

func TestProcessMove_ZeroAccuracyAlwaysMisses(t *testing.T) {
	c1 := pikachu()
	c1.Moves[0].Detail.Accuracy = 0
	b := newTestBattle(c1, bulbasaur(), Deps{Roller: &scriptedRoller{vals: []float64{0}}})

	res, err := b.ProcessMove(context.Background(), alice.ID, 0)
	require.NoError(t, err)
	assert.False(t, res.GameOver)
	assert.Equal(t, bob.ID, res.CurrentTurn)
	assert.Equal(t, 200, res.Pokemon2.CurrentHP)
	assert.Equal(t, "Pikachu's Tackle missed!", res.BattleLog[len(res.BattleLog)-1])
}

func TestProcessMove_HitFlipsTurn(t *testing.T) {
	b := newTestBattle(pikachu(), bulbasaur(), Deps{})

	res, err := b.ProcessMove(context.Background(), alice.ID, 0)
	require.NoError(t, err)
	assert.False(t, res.GameOver)
	assert.Equal(t, 128, res.Pokemon2.CurrentHP)
	assert.Equal(t, bob.ID, res.CurrentTurn)
	assert.Contains(t, res.BattleLog, "Pikachu used Tackle!")
	assert.Contains(t, res.BattleLog, "It dealt 72 damage to Bulbasaur.")
	assert.Equal(t, "Now it's Bob's turn.", res.BattleLog[len(res.BattleLog)-1])

	// the acting player no longer owns the turn
	_, err = b.ProcessMove(context.Background(), alice.ID, 0)
	require.ErrorIs(t, err, ErrNotYourTurn)
}

func TestProcessMove_FatalHitFinishesBattle(t *testing.T) {
	c2 := bulbasaur()
	c2.Stats.HP = 72
	b := newTestBattle(pikachu(), c2, Deps{})

	res, err := b.ProcessMove(context.Background(), alice.ID, 0)
	require.NoError(t, err)
	assert.True(t, res.GameOver)
	assert.Equal(t, alice.ID, res.Winner)
	assert.Equal(t, 0, res.Pokemon2.CurrentHP)
	assert.Equal(t, alice.ID, res.CurrentTurn, "no turn flip after a faint")
	assert.Equal(t, "Bulbasaur fainted! Alice wins the battle!", res.BattleLog[len(res.BattleLog)-1])
	assert.Equal(t, StatusFinished, b.Status)

	for _, p := range []Player{alice, bob} {
		_, err := b.ProcessMove(context.Background(), p.ID, 0)
		require.ErrorIs(t, err, ErrNotInBattle)
	}
}

func TestProcessMove_LookupFallback(t *testing.T) {
	c1 := pikachu()
	c1.Moves[0].Detail = nil
	lookup := func(context.Context, string) (MoveDetail, error) {
		return MoveDetail{}, errors.New("provider down")
	}
	b := newTestBattle(c1, bulbasaur(), Deps{Lookup: lookup})

	res, err := b.ProcessMove(context.Background(), alice.ID, 0)
	require.NoError(t, err)
	// power 60 normal physical: floor((22*60*2)/50 + 2) = 54
	assert.Equal(t, 200-54, res.Pokemon2.CurrentHP)
	assert.Nil(t, b.Combatants[0].Moves[0].Detail, "fallback is not cached")
}

func TestProcessMove_LookupCachedAfterFirstUse(t *testing.T) {
	c1 := pikachu()
	c1.Moves[0].Detail = nil
	calls := 0
	lookup := func(_ context.Context, key string) (MoveDetail, error) {
		calls++
		assert.Equal(t, "https://pokeapi.test/move/33/", key)
		return MoveDetail{Power: 40, Accuracy: 100, Type: "Normal", DamageClass: DamageClassPhysical}, nil
	}
	b := newTestBattle(c1, bulbasaur(), Deps{Lookup: lookup})

	ctx := context.Background()
	_, err := b.ProcessMove(ctx, alice.ID, 0)
	require.NoError(t, err)
	_, err = b.ProcessMove(ctx, bob.ID, 0)
	require.NoError(t, err)
	_, err = b.ProcessMove(ctx, alice.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	require.NotNil(t, b.Combatants[0].Moves[0].Detail)
	assert.Equal(t, "normal", b.Combatants[0].Moves[0].Detail.Type)
}

func TestProcessMove_DiscardsAfterCancel(t *testing.T) {
	c1 := pikachu()
	c1.Moves[0].Detail = nil
	ctx, cancel := context.WithCancel(context.Background())
	lookup := func(context.Context, string) (MoveDetail, error) {
		cancel()
		return *tackle().Detail, nil
	}
	b := newTestBattle(c1, bulbasaur(), Deps{Lookup: lookup})

	_, err := b.ProcessMove(ctx, alice.ID, 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, alice.ID, b.CurrentTurn)
	assert.Equal(t, 200, b.Combatants[1].CurrentHP)
	assert.Len(t, b.Log, 1)
	assert.Zero(t, b.Turns)
}

func TestProcessMove_HPInvariantsOverFullBattle(t *testing.T) {
	b := newTestBattle(pikachu(), bulbasaur(), Deps{Roller: NewRoller(42)})
	ctx := context.Background()
	prev := [2]int{b.Combatants[0].CurrentHP, b.Combatants[1].CurrentHP}

	for i := 0; i < 1000 && b.Status != StatusFinished; i++ {
		mover := b.CurrentTurn
		res, err := b.ProcessMove(ctx, mover, 0)
		require.NoError(t, err)

		hp := [2]int{res.Pokemon1.CurrentHP, res.Pokemon2.CurrentHP}
		for side := range hp {
			require.LessOrEqual(t, hp[side], prev[side])
			require.GreaterOrEqual(t, hp[side], 0)
			require.LessOrEqual(t, hp[side], b.Combatants[side].OriginalStats.HP)
		}
		prev = hp

		if !res.GameOver {
			require.Equal(t, b.Opponent(mover), res.CurrentTurn)
		} else {
			require.Equal(t, mover, res.Winner)
		}
	}
	require.Equal(t, StatusFinished, b.Status)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Thunder Punch", DisplayName("thunder-punch"))
	assert.Equal(t, "Mr Mime", DisplayName("mr-mime"))
}

func TestMoveDetailNormalized(t *testing.T) {
	got := MoveDetail{Power: -5, Accuracy: 250, Type: " Fire ", DamageClass: "status"}.Normalized()
	assert.Equal(t, MoveDetail{Power: 0, Accuracy: 100, Type: "fire", DamageClass: DamageClassPhysical}, got)
}
