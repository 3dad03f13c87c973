package domain

// Progression constants.
const (
	XPPerTask   = 50
	XPPerLevel  = 500
	radarXPUnit = 100
	radarMax    = 10.0
)

// RadarAxes labels the profile chart axes, in the order Radar returns them.
var RadarAxes = []string{"SQL", "Python", "Data Mgmt", "Exercises", "Consistency"}

// Progress is a learner's experience and completed-task count.
type Progress struct {
	XP             int `json:"xp"`
	CompletedTasks int `json:"completed_tasks"`
}

// Level is 1 for 0-499 XP, 2 for 500-999 XP and so on.
func (p Progress) Level() int {
	return p.XP/XPPerLevel + 1
}

// LevelProgress is the fraction of the current level completed, in [0, 1).
func (p Progress) LevelProgress() float64 {
	return float64(p.XP%XPPerLevel) / XPPerLevel
}

// Award returns the progress after one more completed task.
func (p Progress) Award() Progress {
	return Progress{XP: p.XP + XPPerTask, CompletedTasks: p.CompletedTasks + 1}
}

// Radar returns the profile chart values for RadarAxes.
func (p Progress) Radar() []float64 {
	base := float64(p.XP) / radarXPUnit
	if base > radarMax {
		base = radarMax
	}
	return []float64{base, base * 0.8, base * 1.2, float64(p.CompletedTasks), 5}
}
