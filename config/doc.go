// Package config holds the mutable runtime toggles for a cache instance.
//
// Toggles can change at any time without restart. Dependent components
// must call Manager.Current on every operation rather than caching a copy;
// that "always read live" contract is what makes the toggles effective
// mid-flight.
package config
