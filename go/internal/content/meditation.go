package content

// MeditationModes is placeholder content; no meditation has a script yet.
var MeditationModes = []Mode{
	{
		ID:              "focus",
		Title:           "Focus meditation",
		Description:     "Train sustained attention",
		DurationLabel:   "about 10 min",
		Icon:            "flame-outline",
		Color:           "#8338ec",
		LongDescription: "Builds the ability to stay with the present moment.",
		Instructions:    "Sit with a straight spine, eyes closed or softly open.",
	},
}
