// Package chem provides the chemical primitives for reaction-path modelling.
//
// The package defines the entities a kinetic path is built from:
//
//   - [Species]: a chemical species with an elemental formula
//   - [System]: an immutable collection of species and the elements they
//     contain, with the formula matrix and ideal activity evaluation
//   - [State]: the mutable instantaneous state (T, P, species amounts)
//   - [ReactionSystem]: reactions with stoichiometry and rate laws
//   - [Partition]: the split of species and elements into the
//     instantaneously-equilibrated and kinetically-controlled subsets
//
// Quantities that carry composition sensitivities ([Vector]) pair a value
// vector with its Jacobian with respect to the species amounts, so that
// downstream solvers can assemble consistent derivatives.
//
// # Conventions
//
// Amounts are in mol, temperature in K, pressure in Pa. The formula matrix
// has one row per element and one column per species. The stoichiometric
// matrix has one row per reaction and one column per species, products
// positive.
package chem
