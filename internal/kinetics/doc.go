// Package kinetics integrates the reaction path of a partially-equilibrated
// chemical system.
//
// The species are split by a [chem.Partition] into an equilibrium subset,
// resolved to thermodynamic equilibrium at every evaluation, and a kinetic
// subset advanced by finite-rate laws. The integration variable is
//
//	u = [be; nk]
//
// where be is the elemental abundance of the equilibrium elements and nk the
// amounts of the kinetic species. [Path] owns u, assembles the right-hand
// side du/dt = A r and its Jacobian A [Re Be | Rk] for the stiff integrator,
// and keeps the caller's [chem.State] consistent at every step boundary:
// kinetic amounts written back, equilibrium subset re-resolved.
//
// A Path is single-threaded: its buffers are reused across evaluations and
// the bound state is mutated in place. Serialize access externally.
package kinetics
