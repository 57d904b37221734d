// Package models lists the models served by the OpenAI compatible
// endpoint used for escalation decisions, grouped into decision capable
// chat models, speech models and the rest.
package models
