package llm

// prompts.go defines the system prompts sent to the language model.  Keeping
// the prompts in a separate file makes them easy to tweak without touching
// the rest of the code.  The engine supplies structured context (phase,
// target field, collected data); the model only does the phrasing.

const (
	// QuestionSystemPrompt instructs the model to phrase exactly one
	// short, empathetic intake question for the field the engine selected.
	// It must never diagnose, never ask about more than one thing, and
	// must not repeat information the patient already gave.
	QuestionSystemPrompt = "You are a friendly medical intake assistant for a clinic. " +
		"You will be given the current intake phase, the single piece of information to ask for next, " +
		"and the structured data collected so far. " +
		"Phrase exactly ONE short, empathetic question that asks only for that piece of information. " +
		"Use plain language, no medical jargon, no diagnosis, no treatment advice. " +
		"Do not repeat questions whose answers are already present in the collected data."

	// NarrativeSystemPrompt instructs the model to write the clinical
	// narrative for the finalized record from the structured data.
	NarrativeSystemPrompt = "You are a clinical documentation assistant. " +
		"Write a concise clinical intake narrative in English from the structured patient data provided. " +
		"Cover demographics, reported symptoms with duration and detail, and the triage alert level with its reason. " +
		"Use professional medical register, complete sentences, and no recommendations beyond the alert level. " +
		"If a field is missing, omit it rather than guessing."
)
