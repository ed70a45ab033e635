// Package dayun expands a first Da Yun pillar, its start age and a direction
// into the age bands of a 100 year life, and into one decade and yearly pillar
// per age.
//
// The same expansion is described to the text generator in the prompt; the
// local copy is the reference used to check what the generator returns.
package dayun
