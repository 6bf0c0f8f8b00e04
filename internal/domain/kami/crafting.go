package kami

import (
	"fmt"
	"sort"
	"time"
)

type RecipeInput struct {
	ItemID int `json:"item_id" yaml:"item_id"`
	Amount int `json:"amount" yaml:"amount"`
}

type Recipe struct {
	ID          int           `json:"id" yaml:"id"`
	Name        string        `json:"name,omitempty" yaml:"name"`
	Inputs      []RecipeInput `json:"inputs" yaml:"inputs"`
	StaminaCost int           `json:"stamina_cost" yaml:"stamina_cost"`
}

type Shortfall struct {
	ItemID   int `json:"id"`
	Required int `json:"required"`
	Current  int `json:"current"`
}

func (s Shortfall) String() string {
	return fmt.Sprintf("item %d: need %d, have %d", s.ItemID, s.Required, s.Current)
}

// Shortfalls lists every input the inventory cannot cover for amount runs.
func (r Recipe) Shortfalls(inventory map[int]int, amount int) []Shortfall {
	var out []Shortfall
	for _, in := range r.Inputs {
		required := in.Amount * amount
		if held := inventory[in.ItemID]; held < required {
			out = append(out, Shortfall{ItemID: in.ItemID, Required: required, Current: held})
		}
	}
	return out
}

func (r Recipe) StaminaNeeded(amount int) int {
	return r.StaminaCost * amount
}

// Due reports whether a run is owed. A setting that never ran is due.
func (s CraftingSetting) Due(now time.Time) bool {
	if !s.IsEnabled {
		return false
	}
	if s.LastRunAt == nil {
		return true
	}
	return now.Sub(*s.LastRunAt) >= minutes(s.IntervalMinutes)
}

type RecipeCatalog struct {
	byID map[int]Recipe
}

func NewRecipeCatalog(recipes []Recipe) (RecipeCatalog, error) {
	byID := make(map[int]Recipe, len(recipes))
	for _, r := range recipes {
		if r.ID <= 0 {
			return RecipeCatalog{}, fmt.Errorf("recipe %q: id must be positive", r.Name)
		}
		if _, dup := byID[r.ID]; dup {
			return RecipeCatalog{}, fmt.Errorf("recipe %d: duplicate id", r.ID)
		}
		inputs := make([]RecipeInput, len(r.Inputs))
		copy(inputs, r.Inputs)
		r.Inputs = inputs
		byID[r.ID] = r
	}
	return RecipeCatalog{byID: byID}, nil
}

func (c RecipeCatalog) Lookup(id int) (Recipe, bool) {
	r, ok := c.byID[id]
	return r, ok
}

func (c RecipeCatalog) IDs() []int {
	out := make([]int, 0, len(c.byID))
	for id := range c.byID {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
