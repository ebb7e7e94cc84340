package resolver

import (
	"errors"
	"fmt"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

var (
	// ErrInvalidRecipe is returned when a catalog entry breaks a recipe invariant.
	ErrInvalidRecipe = errors.New("invalid recipe")

	// ErrInvalidGroup is returned when a substitution group is malformed.
	ErrInvalidGroup = errors.New("invalid substitution group")

	// ErrRecipeNotFound is returned when a recipe id is not in the catalog.
	ErrRecipeNotFound = errors.New("recipe not found")

	// ErrSimulationMismatch means a recursive replay could not consume an
	// ingredient the dry run had counted on.
	ErrSimulationMismatch = errors.New("simulation and live inventory disagree")
)

// MismatchError describes the ingredient a replay failed to consume.
type MismatchError struct {
	RecipeID string
	Item     crafting.ItemID
	Wanted   uint32
	Got      uint32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: recipe %s needed %d of %s, found %d", ErrSimulationMismatch, e.RecipeID, e.Wanted, e.Item, e.Got)
}

func (e *MismatchError) Unwrap() error {
	return ErrSimulationMismatch
}
