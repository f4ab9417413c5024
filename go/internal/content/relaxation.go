package content

import (
	"fmt"
	"time"

	"github.com/mcdev12/stillpoint/go/internal/phasetimer"
)

// Mode is the menu entry shown for a relaxation or meditation exercise.
type Mode struct {
	ID              string `json:"id" yaml:"id"`
	Title           string `json:"title" yaml:"title"`
	Description     string `json:"description" yaml:"description"`
	DurationLabel   string `json:"duration_label" yaml:"duration_label"`
	Icon            string `json:"icon" yaml:"icon"`
	Color           string `json:"color" yaml:"color"`
	LongDescription string `json:"long_description" yaml:"long_description"`
	Instructions    string `json:"instructions" yaml:"instructions"`
	Warning         string `json:"warning,omitempty" yaml:"warning"`
}

// Script is the timed content of a guided exercise: an intro cue, the
// phases, and an end cue.
type Script struct {
	ID       string             `json:"id" yaml:"id"`
	Title    string             `json:"title" yaml:"title"`
	IntroCue string             `json:"intro_cue" yaml:"intro_cue"`
	EndCue   string             `json:"end_cue" yaml:"end_cue"`
	Phases   []phasetimer.Phase `json:"phases" yaml:"phases"`
}

// RelaxModes lists the muscle relaxation exercises.
var RelaxModes = []Mode{
	{
		ID:              "full",
		Title:           "Progressive full-body relaxation",
		Description:     "Tense then release 11 muscle groups in turn",
		DurationLabel:   "about 10 min",
		Icon:            "body-outline",
		Color:           "#3a86ff",
		LongDescription: "Work from the feet to the face, tensing and then releasing each group so the whole body lets go.",
		Instructions:    "Sit or lie down and breathe naturally. Press start and follow the voice.",
		Warning:         "With serious heart disease or high blood pressure, use under a doctor's guidance.",
	},
	{
		ID:              "segment",
		Title:           "Focused area relaxation",
		Description:     "Deep release for one area at a time",
		DurationLabel:   "about 5 min",
		Icon:            "fitness-outline",
		Color:           "#4cc9f0",
		LongDescription: "Targets shoulders and neck, back, and lower limbs, the three areas that tire most.",
		Instructions:    "Pick a comfortable position. Keep breathing; do not hold your breath.",
		Warning:         "With a neck injury, use under a doctor's guidance.",
	},
	{
		ID:              "quick",
		Title:           "Quick full-body relaxation",
		Description:     "Tense everything at once, then release",
		DurationLabel:   "about 2 min",
		Icon:            "flash-outline",
		Color:           "#ff006e",
		LongDescription: "A short break for busy moments: one full-body tension followed by a long release.",
		Instructions:    "Seated is fine. Breathe naturally and follow the voice.",
	},
}

type muscleGroup struct {
	id   string
	name string
}

func tenseRelax(prefix string, groups []muscleGroup, tense, relax time.Duration) []phasetimer.Phase {
	phases := make([]phasetimer.Phase, 0, 2*len(groups))
	for _, g := range groups {
		phases = append(phases,
			phasetimer.Phase{
				ID:       g.id + "_tension",
				Name:     g.name + ": tense",
				Duration: tense,
				Cue:      fmt.Sprintf("muscle_tension_%s%s", prefix, g.id),
			},
			phasetimer.Phase{
				ID:       g.id + "_relax",
				Name:     g.name + ": relax",
				Duration: relax,
				Cue:      fmt.Sprintf("muscle_relax_%s%s", prefix, g.id),
			},
		)
	}
	return phases
}

// RelaxScripts holds the timed scripts keyed by mode ID.
var RelaxScripts = map[string]Script{
	"full": {
		ID:       "full",
		Title:    "Progressive full-body relaxation",
		IntroCue: "muscle_full_intro",
		EndCue:   "muscle_full_end",
		Phases: tenseRelax("", []muscleGroup{
			{"foot", "Feet"},
			{"calf", "Calves"},
			{"thigh", "Thighs"},
			{"buttocks", "Glutes"},
			{"back", "Back"},
			{"abdomen", "Abdomen"},
			{"chest", "Chest"},
			{"shoulders", "Shoulders"},
			{"arms", "Arms"},
			{"neck", "Neck"},
			{"face", "Face"},
		}, 5*time.Second, 10*time.Second),
	},
	"segment": {
		ID:       "segment",
		Title:    "Focused area relaxation",
		IntroCue: "muscle_segment_intro",
		EndCue:   "muscle_segment_end",
		Phases: tenseRelax("segment_", []muscleGroup{
			{"shoulder_neck", "Shoulders and neck"},
			{"back", "Back"},
			{"lower_limb", "Lower limbs"},
		}, 5*time.Second, 15*time.Second),
	},
	"quick": {
		ID:       "quick",
		Title:    "Quick full-body relaxation",
		IntroCue: "muscle_quick_intro",
		EndCue:   "muscle_quick_end",
		Phases: []phasetimer.Phase{
			{ID: "quick_tension", Name: "Whole body: tense", Duration: 10 * time.Second, Cue: "muscle_quick_tension"},
			{ID: "quick_relax", Name: "Whole body: relax", Duration: 50 * time.Second, Cue: "muscle_quick_relax"},
		},
	},
}
