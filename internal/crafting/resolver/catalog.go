// Package resolver is the recursive crafting resolution core. It works on
// in-memory catalogs and snapshots only and performs no I/O.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// DefaultMaxStack is used for item types without metadata.
const DefaultMaxStack uint32 = 9999

var validate = validator.New()

// Catalog is an immutable, validated set of recipes, substitution groups and
// item metadata. Recipe order is declaration order and is the tie-break
// whenever several recipes qualify for the same role.
type Catalog struct {
	recipes []*crafting.Recipe
	byID    map[string]*crafting.Recipe
	order   map[*crafting.Recipe]int

	groups       map[crafting.GroupID]map[crafting.ItemID]struct{}
	groupMembers map[crafting.GroupID][]crafting.ItemID

	items           map[crafting.ItemID]crafting.ItemInfo
	defaultMaxStack uint32
}

// CatalogOption configures NewCatalog.
type CatalogOption func(*Catalog)

// WithDefaultMaxStack sets the stack limit for item types without metadata.
func WithDefaultMaxStack(n uint32) CatalogOption {
	return func(c *Catalog) {
		if n > 0 {
			c.defaultMaxStack = n
		}
	}
}

// NewCatalog validates and indexes the given catalog data. The recipes are
// copied; later changes to the arguments do not affect the catalog.
func NewCatalog(recipes []crafting.Recipe, groups []crafting.SubstitutionGroup, items []crafting.ItemInfo, opts ...CatalogOption) (*Catalog, error) {
	c := &Catalog{
		recipes:         make([]*crafting.Recipe, 0, len(recipes)),
		byID:            make(map[string]*crafting.Recipe, len(recipes)),
		order:           make(map[*crafting.Recipe]int, len(recipes)),
		groups:          make(map[crafting.GroupID]map[crafting.ItemID]struct{}, len(groups)),
		groupMembers:    make(map[crafting.GroupID][]crafting.ItemID, len(groups)),
		items:           make(map[crafting.ItemID]crafting.ItemInfo, len(items)),
		defaultMaxStack: DefaultMaxStack,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, g := range groups {
		if err := validate.Struct(g); err != nil {
			return nil, fmt.Errorf("%w %q: %s", ErrInvalidGroup, g.ID, describe(err))
		}
		if _, dup := c.groups[g.ID]; dup {
			return nil, fmt.Errorf("%w %q: duplicate id", ErrInvalidGroup, g.ID)
		}
		set := make(map[crafting.ItemID]struct{}, len(g.Members))
		members := make([]crafting.ItemID, 0, len(g.Members))
		for _, m := range g.Members {
			if _, seen := set[m]; seen {
				continue
			}
			set[m] = struct{}{}
			members = append(members, m)
		}
		c.groups[g.ID] = set
		c.groupMembers[g.ID] = members
	}

	for _, info := range items {
		if err := validate.Struct(info); err != nil {
			return nil, fmt.Errorf("item %q: %s", info.ID, describe(err))
		}
		c.items[info.ID] = info
	}

	for i := range recipes {
		r := cloneRecipe(recipes[i])
		if err := c.check(r); err != nil {
			return nil, err
		}
		c.order[r] = len(c.recipes)
		c.recipes = append(c.recipes, r)
		c.byID[r.ID] = r
	}

	return c, nil
}

func (c *Catalog) check(r *crafting.Recipe) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w %q: %s", ErrInvalidRecipe, r.ID, describe(err))
	}
	if _, dup := c.byID[r.ID]; dup {
		return fmt.Errorf("%w %q: duplicate id", ErrInvalidRecipe, r.ID)
	}
	if r.Result.Item == "" || r.Result.Quantity < 1 {
		return fmt.Errorf("%w %q: result must yield at least one item", ErrInvalidRecipe, r.ID)
	}
	if len(r.RequiredItems) == 0 && !r.StationOnly {
		return fmt.Errorf("%w %q: no required items and not station-only", ErrInvalidRecipe, r.ID)
	}
	for _, g := range r.AcceptedGroups {
		if _, ok := c.groups[g]; !ok {
			return fmt.Errorf("%w %q: unknown group %q", ErrInvalidRecipe, r.ID, g)
		}
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed %s", e.Namespace(), e.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func cloneRecipe(r crafting.Recipe) *crafting.Recipe {
	out := r
	out.RequiredItems = append([]crafting.ItemStack(nil), r.RequiredItems...)
	out.RequiredStations = append([]crafting.TileID(nil), r.RequiredStations...)
	out.AcceptedGroups = append([]crafting.GroupID(nil), r.AcceptedGroups...)
	out.Conditions = append([]string(nil), r.Conditions...)
	return &out
}

// Recipes returns the recipes in declaration order.
func (c *Catalog) Recipes() []*crafting.Recipe {
	return c.recipes
}

// Recipe looks a recipe up by id.
func (c *Catalog) Recipe(id string) (*crafting.Recipe, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// Len returns the number of recipes.
func (c *Catalog) Len() int {
	return len(c.recipes)
}

// MaxStack returns the stack limit of an item type.
func (c *Catalog) MaxStack(item crafting.ItemID) uint32 {
	if info, ok := c.items[item]; ok && info.MaxStack > 0 {
		return info.MaxStack
	}
	return c.defaultMaxStack
}

// position returns the declaration index of a catalog recipe, or -1.
func (c *Catalog) position(r *crafting.Recipe) int {
	if i, ok := c.order[r]; ok {
		return i
	}
	return -1
}
