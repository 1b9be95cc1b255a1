package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProfileID is the structured log field key for the profile identifier.
	FieldProfileID = "profile_id"
	// FieldPlatform is the structured log field key for the source platform.
	FieldPlatform = "platform"
	// FieldJobID is the structured log field key for asynchronous job identifiers.
	FieldJobID = "job_id"
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger is replaced with a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// AIFields returns standard zap fields that describe the AI provider and model.
func AIFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithAI attaches the AI provider and model to the provided logger.
func WithAI(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, AIFields(provider, model)...)
}

// ProfileFields describes the profile and, when known, the source platform a
// log entry is about.
func ProfileFields(profileID, platform string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProfileID, Value: profileID},
		StringField{Key: FieldPlatform, Value: platform},
	)
}

// WithProfile attaches the profile fields to the provided logger.
func WithProfile(logger *zap.Logger, profileID, platform string) *zap.Logger {
	return WithFields(logger, ProfileFields(profileID, platform)...)
}
