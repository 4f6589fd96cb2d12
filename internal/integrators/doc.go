// Package integrators provides fixed-step ODE solvers used by the simulated
// device to advance the end-effector between servo ticks.
package integrators
