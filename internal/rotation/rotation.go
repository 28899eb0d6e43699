// Package rotation implements the deterministic model-role rotation for a
// reasoning session. The three configured models rotate positions each
// iteration so every model plays every role once per three iterations:
//
//   - Iteration 0: model A generates, model B critiques, model C refines
//   - Iteration 1: model B generates, model C critiques, model A refines
//   - Iteration 2: model C generates, model A critiques, model B refines
//   - Iteration 3+: cycles back
//
// The server computes the same assignment for actual role dispatch; the
// client reproduces it here to pre-fill model names when an iteration opens,
// before the server confirms them. The two computations must never diverge.
package rotation

// Roster is the fixed three-model lineup for a session, in the order
// configured at session start: generator, critic, refiner.
type Roster [3]string

// Assignment names the model playing each role for one iteration.
type Assignment struct {
	Generator string
	Critic    string
	Refiner   string
}

// Council reports whether the iteration index denotes the council
// pre-phase, which sits outside the rotation.
func Council(iteration int) bool {
	return iteration < 0
}

// Rotate returns the role assignment for the given iteration.
// The council pre-phase (negative iteration) has no rotation assignment
// and yields a zero Assignment.
func Rotate(roster Roster, iteration int) Assignment {
	if Council(iteration) {
		return Assignment{}
	}
	return Assignment{
		Generator: roster[iteration%3],
		Critic:    roster[(iteration+1)%3],
		Refiner:   roster[(iteration+2)%3],
	}
}
