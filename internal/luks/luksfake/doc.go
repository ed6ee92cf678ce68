// Package luksfake emulates cryptsetup's key-slot semantics behind the
// luks.Runner interface.
//
// Tests register in-memory volumes, run the real protocol code against
// them, and assert on the resulting slot state and the recorded command
// log. The Intercept hook injects failures at chosen steps to exercise
// the partial-failure paths of the rotation protocols.
package luksfake
