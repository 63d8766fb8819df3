package vehicle

import (
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// MassCategories lists every mass category in table order
var MassCategories = []MassCategory{Light, Medium, Heavy}

// TireTypes lists every tire type in table order
var TireTypes = []TireType{Rain, Slick}

// massPounds maps each mass category to its curb weight in pounds
var massPounds = map[MassCategory]float64{
	Light:  1800,
	Medium: 2800,
	Heavy:  3800,
}

type tireProfile struct {
	baseGrip  float64
	stiffness float64
}

var tireProfiles = map[TireType]tireProfile{
	Rain:  {baseGrip: 0.7, stiffness: 100000},
	Slick: {baseGrip: 1.0, stiffness: 150000},
}

type classKey struct {
	mass MassCategory
	tire TireType
}

// maxVelocities spells out every combination. Rain tires cap every mass
// category at the same speed.
var maxVelocities = map[classKey]float64{
	{Light, Slick}:  200,
	{Medium, Slick}: 180,
	{Heavy, Slick}:  160,
	{Light, Rain}:   140,
	{Medium, Rain}:  140,
	{Heavy, Rain}:   140,
}

// Resolve looks up the physical constants for a mass category and tire type
func Resolve(mass MassCategory, tire TireType) (Configuration, error) {
	pounds, ok := massPounds[mass]
	if !ok {
		return Configuration{}, fmt.Errorf("%w: unknown mass category %q", ErrInvalidConfiguration, mass)
	}
	profile, ok := tireProfiles[tire]
	if !ok {
		return Configuration{}, fmt.Errorf("%w: unknown tire type %q", ErrInvalidConfiguration, tire)
	}
	maxVelocity, ok := maxVelocities[classKey{mass, tire}]
	if !ok {
		return Configuration{}, fmt.Errorf("%w: no max velocity for %s/%s", ErrInvalidConfiguration, mass, tire)
	}

	return Configuration{
		MassCategory:            mass,
		TireType:                tire,
		Mass:                    pounds * PoundsToKilograms,
		BaseTireGrip:            profile.baseGrip,
		CorneringStiffnessFront: profile.stiffness * FrontWeightShare,
		CorneringStiffnessRear:  profile.stiffness * RearWeightShare,
		MaxVelocity:             maxVelocity,
		Wheelbase:               Wheelbase,
	}, nil
}

// ClassName returns the catalog key for a combination, e.g. "medium/slick"
func ClassName(mass MassCategory, tire TireType) string {
	return string(mass) + "/" + string(tire)
}

// Catalog returns the resolved configuration of every mass/tire combination,
// keyed by ClassName and ordered by mass category then tire type.
func Catalog() *orderedmap.OrderedMap[string, Configuration] {
	catalog := orderedmap.NewOrderedMap[string, Configuration]()
	for _, mass := range MassCategories {
		for _, tire := range TireTypes {
			cfg, err := Resolve(mass, tire)
			if err != nil {
				// the tables above cover every enumerated pair
				panic(err)
			}
			catalog.Set(ClassName(mass, tire), cfg)
		}
	}
	return catalog
}

// ParseMassCategory parses a mass category name (case-insensitive)
func ParseMassCategory(s string) (MassCategory, error) {
	m := MassCategory(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := massPounds[m]; !ok {
		return "", fmt.Errorf("%w: unknown mass category %q (want light, medium or heavy)", ErrInvalidConfiguration, s)
	}
	return m, nil
}

// ParseTireType parses a tire type name (case-insensitive)
func ParseTireType(s string) (TireType, error) {
	t := TireType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tireProfiles[t]; !ok {
		return "", fmt.Errorf("%w: unknown tire type %q (want rain or slick)", ErrInvalidConfiguration, s)
	}
	return t, nil
}
