package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/poke-battle-backend/internal/engine"
)

const (
	DefaultBaseURL = "https://pokeapi.co/api/v2"
	DefaultMaxID   = 898
)

type Options struct {
	BaseURL    string
	MaxID      int
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	// Intn picks ids in [0,n). Defaults to math/rand/v2.
	Intn func(n int) int
}

// PokeAPI is a Provider backed by the public PokeAPI REST service.
type PokeAPI struct {
	baseURL string
	maxID   int
	client  *http.Client
	logger  *zap.Logger
	intn    func(n int) int
}

func NewPokeAPI(opts Options) *PokeAPI {
	p := &PokeAPI{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		maxID:   opts.MaxID,
		client:  opts.HTTPClient,
		logger:  opts.Logger,
		intn:    opts.Intn,
	}
	if p.baseURL == "" {
		p.baseURL = DefaultBaseURL
	}
	if p.maxID <= 0 {
		p.maxID = DefaultMaxID
	}
	if p.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		p.client = &http.Client{Timeout: timeout}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.intn == nil {
		p.intn = rand.IntN
	}
	return p
}

type namedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type pokemonResponse struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Stats []struct {
		BaseStat int           `json:"base_stat"`
		Stat     namedResource `json:"stat"`
	} `json:"stats"`
	Types []struct {
		Slot int           `json:"slot"`
		Type namedResource `json:"type"`
	} `json:"types"`
	Sprites struct {
		FrontDefault string `json:"front_default"`
	} `json:"sprites"`
	Moves []struct {
		Move                namedResource `json:"move"`
		VersionGroupDetails []struct {
			LevelLearnedAt int `json:"level_learned_at"`
		} `json:"version_group_details"`
	} `json:"moves"`
}

type moveResponse struct {
	Power       *int          `json:"power"`
	Accuracy    *int          `json:"accuracy"`
	Type        namedResource `json:"type"`
	DamageClass namedResource `json:"damage_class"`
}

// FetchOptions fetches count random combatants concurrently. Any single failure
// fails the whole call.
func (p *PokeAPI) FetchOptions(ctx context.Context, count int) ([]engine.Combatant, error) {
	if count <= 0 {
		return nil, nil
	}
	if count > p.maxID {
		return nil, fmt.Errorf("roster: cannot pick %d distinct ids from %d", count, p.maxID)
	}

	ids := p.pickIDs(count)
	out := make([]engine.Combatant, count)
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			c, err := p.fetchPokemon(gctx, id)
			if err != nil {
				return err
			}
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PokeAPI) pickIDs(count int) []int {
	seen := make(map[int]bool, count)
	ids := make([]int, 0, count)
	for len(ids) < count {
		id := p.intn(p.maxID) + 1
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func (p *PokeAPI) fetchPokemon(ctx context.Context, id int) (engine.Combatant, error) {
	var raw pokemonResponse
	if err := p.getJSON(ctx, fmt.Sprintf("%s/pokemon/%d", p.baseURL, id), &raw); err != nil {
		return engine.Combatant{}, fmt.Errorf("fetch pokemon %d: %w", id, err)
	}
	return raw.toCombatant(), nil
}

func (r pokemonResponse) toCombatant() engine.Combatant {
	c := engine.Combatant{ID: r.ID, Name: r.Name, Sprite: r.Sprites.FrontDefault}
	for _, s := range r.Stats {
		switch s.Stat.Name {
		case "hp":
			c.Stats.HP = s.BaseStat
		case "attack":
			c.Stats.Attack = s.BaseStat
		case "defense":
			c.Stats.Defense = s.BaseStat
		case "special-attack":
			c.Stats.SpecialAttack = s.BaseStat
		case "special-defense":
			c.Stats.SpecialDefense = s.BaseStat
		case "speed":
			c.Stats.Speed = s.BaseStat
		}
	}
	for _, t := range r.Types {
		c.Types = append(c.Types, t.Type.Name)
	}
	// Prefer moves learned by level-up.
	for _, m := range r.Moves {
		if len(c.Moves) == engine.MaxMoves {
			break
		}
		for _, v := range m.VersionGroupDetails {
			if v.LevelLearnedAt > 0 {
				c.Moves = append(c.Moves, engine.Move{Name: m.Move.Name, URL: m.Move.URL})
				break
			}
		}
	}
	return c
}

// FetchMoveDetail accepts either a full move URL or a bare name/id.
// Status moves without power or accuracy get the fallback values for those fields.
func (p *PokeAPI) FetchMoveDetail(ctx context.Context, key string) (engine.MoveDetail, error) {
	url := key
	if !strings.HasPrefix(key, "http://") && !strings.HasPrefix(key, "https://") {
		url = fmt.Sprintf("%s/move/%s", p.baseURL, key)
	}

	var raw moveResponse
	if err := p.getJSON(ctx, url, &raw); err != nil {
		return engine.MoveDetail{}, fmt.Errorf("fetch move %s: %w", key, err)
	}

	d := engine.FallbackMoveDetail
	if raw.Power != nil {
		d.Power = *raw.Power
	}
	if raw.Accuracy != nil {
		d.Accuracy = *raw.Accuracy
	}
	if raw.Type.Name != "" {
		d.Type = raw.Type.Name
	}
	if raw.DamageClass.Name == string(engine.DamageClassSpecial) {
		d.DamageClass = engine.DamageClassSpecial
	}
	return d.Normalized(), nil
}

func (p *PokeAPI) getJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	p.logger.Debug("roster lookup", zap.String("url", url))
	return nil
}
