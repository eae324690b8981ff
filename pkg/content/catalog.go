package content

import (
	"context"
	"math/rand/v2"
	"slices"
	"strconv"
	"sync"

	"github.com/jwebster45206/journey-engine/pkg/apperror"
)

// CityFile is the on-disk format of one city's story, as stored under
// data/cities/<name>.json.
type CityFile struct {
	ID        int        `json:"city_id"`
	Name      string     `json:"city_name"`
	Questions []Question `json:"questions"`
}

type questionKey struct {
	cityID int
	number int
}

// Catalog is an in-memory Store built from CityFiles and a fact list.
type Catalog struct {
	cities    []City
	byName    map[string]int
	byID      map[int]string
	questions map[questionKey]Question
	facts     []string

	mu  sync.Mutex // guards rng
	rng Rand
}

var _ Store = (*Catalog)(nil)

// NewCatalog indexes the given cities. Duplicate city ids, city names or
// question numbers within a city are reported as consistency errors.
// A nil rng uses a time-seeded generator.
func NewCatalog(files []CityFile, facts []string, rng Rand) (*Catalog, error) {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	c := &Catalog{
		byName:    make(map[string]int),
		byID:      make(map[int]string),
		questions: make(map[questionKey]Question),
		facts:     slices.Clone(facts),
		rng:       rng,
	}

	for _, f := range files {
		if _, ok := c.byID[f.ID]; ok {
			return nil, apperror.Consistency("duplicate city id %d", f.ID)
		}
		if _, ok := c.byName[f.Name]; ok {
			return nil, apperror.Consistency("duplicate city name %q", f.Name)
		}
		c.byID[f.ID] = f.Name
		c.byName[f.Name] = f.ID
		c.cities = append(c.cities, City{ID: f.ID, Name: f.Name})

		for _, q := range f.Questions {
			q.CityID = f.ID
			key := questionKey{cityID: f.ID, number: q.Number}
			if _, ok := c.questions[key]; ok {
				return nil, apperror.Consistency("duplicate question %d for city %q", q.Number, f.Name)
			}
			c.questions[key] = q
		}
	}

	slices.SortFunc(c.cities, func(a, b City) int { return a.ID - b.ID })
	return c, nil
}

func (c *Catalog) ResolveCityID(_ context.Context, name string) (int, error) {
	id, ok := c.byName[name]
	if !ok {
		return 0, apperror.NotFound("city", name)
	}
	return id, nil
}

func (c *Catalog) ResolveCityName(_ context.Context, id int) (string, error) {
	name, ok := c.byID[id]
	if !ok {
		return "", apperror.NotFound("city", strconv.Itoa(id))
	}
	return name, nil
}

func (c *Catalog) GetQuestion(_ context.Context, cityID, number int) (*Question, error) {
	q, ok := c.questions[questionKey{cityID: cityID, number: number}]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (c *Catalog) RandomFact(_ context.Context) string {
	if len(c.facts) == 0 {
		return DefaultFact
	}
	c.mu.Lock()
	i := c.rng.IntN(len(c.facts))
	c.mu.Unlock()
	return c.facts[i]
}

func (c *Catalog) ListCities(_ context.Context) ([]City, error) {
	return slices.Clone(c.cities), nil
}
