package printspec

import (
	"fmt"
	"strings"
)

// BindingKind identifies a supported book binding.
type BindingKind string

const (
	BindingSoftcover BindingKind = "softcover"
	BindingHardcover BindingKind = "hardcover"
)

// BookTypeProfile holds the immutable print characteristics of one binding.
// Profiles are looked up by binding kind and never mutated at runtime.
type BookTypeProfile struct {
	ProductCode   string
	Binding       BindingKind
	DisplayName   string
	PageThickness float64 // inches of spine per interior page
}

var profiles = map[BindingKind]BookTypeProfile{
	BindingSoftcover: {
		ProductCode:   "0850X0850FCSTDPB080CW444GXX",
		Binding:       BindingSoftcover,
		DisplayName:   "Softcover Picture Book",
		PageThickness: 0.00225,
	},
	BindingHardcover: {
		ProductCode:   "0850X0850FCSTDCW080CW444GXX",
		Binding:       BindingHardcover,
		DisplayName:   "Hardcover Picture Book",
		PageThickness: 0.0035,
	},
}

// ProfileFor returns the profile registered for the given binding kind.
func ProfileFor(kind BindingKind) (BookTypeProfile, error) {
	normalized := BindingKind(strings.ToLower(strings.TrimSpace(string(kind))))
	profile, ok := profiles[normalized]
	if !ok {
		return BookTypeProfile{}, fmt.Errorf("unknown binding kind %q", kind)
	}
	return profile, nil
}

// Profiles returns every registered profile.
func Profiles() []BookTypeProfile {
	out := make([]BookTypeProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	return out
}
