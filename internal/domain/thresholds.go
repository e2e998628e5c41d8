package domain

// RoleThreshold maps a role to the minimum karma required to hold it.
type RoleThreshold struct {
	Role     Role
	MinKarma float64
}

// DefaultRoleThresholds is the built-in progression ladder. Thresholds are
// monotonic; RoleForKarma depends on ascending order.
func DefaultRoleThresholds() []RoleThreshold {
	return []RoleThreshold{
		{Role: RoleSeeker, MinKarma: 0}, // Floor rung; also holds negative karma.
		{Role: RoleAspirant, MinKarma: 50},
		{Role: RoleHouseholder, MinKarma: 150},
		{Role: RoleSage, MinKarma: 400},
		{Role: RoleRishi, MinKarma: 1000},
	}
}

// RoleForKarma returns the highest role whose threshold the karma meets.
// Karma below every threshold maps to the lowest rung.
func RoleForKarma(thresholds []RoleThreshold, karma float64) Role {
	if len(thresholds) == 0 {
		return RoleSeeker
	}
	role := thresholds[0].Role
	for _, t := range thresholds {
		if karma >= t.MinKarma {
			role = t.Role
		}
	}
	return role
}

// StepRole moves from one role toward a target by at most one rung.
// Role progression never skips tiers on a single action.
func StepRole(current, target Role) Role {
	ladder := RoleLadder()
	ci, ti := RoleRank(current), RoleRank(target)
	if ci < 0 || ti < 0 || ci == ti {
		return current
	}
	if ti > ci {
		return ladder[ci+1]
	}
	return ladder[ci-1]
}
