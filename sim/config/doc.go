// Package config loads and manages vehicle presets.
//
// A preset is a small JSON file naming a mass category, a tire type and a
// start position:
//
//	{
//	  "name": "street",
//	  "description": "Medium car on slick tires starting at the origin",
//	  "mass_category": "medium",
//	  "tire_type": "slick",
//	  "start_x": 0,
//	  "start_y": 0
//	}
//
// The Manager reads presets from a directory, caches them, and validates
// them on load and on save. The preset ID is the file name without the
// .json extension.
//
// Default Preset:
//
// The default preset is street.json when present, otherwise the first valid
// preset in the directory, otherwise a built-in medium/slick car at the
// origin.
package config
