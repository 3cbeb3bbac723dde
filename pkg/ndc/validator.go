// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ndc

import "fmt"

// AnomalyType represents different types of message anomalies
type AnomalyType int

const (
	AnomalyMissingField AnomalyType = iota
	AnomalyUnknownClass
	AnomalyUnknownSubclass
	AnomalyInvalidValue
	AnomalyCRCError
	AnomalyDecodeError
)

// ValidationError represents a message validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMessage validates message structure and detects anomalies
// Returns a slice of validation errors (empty if the message is valid)
func ValidateMessage(m *Message) []ValidationError {
	errors := []ValidationError{}

	switch m.Class {
	case "":
		errors = append(errors, missing("message_class"))
	case ClassTerminalCommand:
		if m.CommandCode == "" {
			errors = append(errors, missing("command_code"))
		}
	case ClassDataCommand:
		errors = append(errors, validateDataCommand(m)...)
	case ClassTransactionReply:
		if m.NextState == "" {
			errors = append(errors, missing("next_state"))
		} else if !isStateNumber(m.NextState) {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("Invalid next_state %q (expected 3 digits)", m.NextState),
				Details: map[string]interface{}{"next_state": m.NextState},
			})
		}
		if n := m.MessageCoordinationNumber; len(n) > 1 {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("Invalid coordination number %q (expected 1 char)", n),
				Details: map[string]interface{}{"message_coordination_number": n},
			})
		}
	case ClassSolicited:
		if m.StatusDescriptor == "" {
			errors = append(errors, missing("status_descriptor"))
		}
	case ClassUnsolicited:
		if m.Subclass == SubclassTransactionRequest && m.MessageCoordinationNumber == "" {
			errors = append(errors, missing("message_coordination_number"))
		}
	default:
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownClass,
			Message: fmt.Sprintf("Unknown message class %q", m.Class),
			Details: map[string]interface{}{"message_class": m.Class},
		})
	}

	return errors
}

// validateDataCommand validates the subclass-specific fields of a data command
func validateDataCommand(m *Message) []ValidationError {
	switch m.Subclass {
	case SubclassCustomization:
		switch m.MessageIdentifier {
		case IdentifierScreenDataLoad:
			if len(m.Screens) == 0 {
				return []ValidationError{missing("screens")}
			}
		case IdentifierStateTableLoad:
			if len(m.States) == 0 {
				return []ValidationError{missing("states")}
			}
		case IdentifierFITDataLoad:
			if len(m.FITs) == 0 {
				return []ValidationError{missing("FITs")}
			}
		case IdentifierConfigIDLoad:
			if m.ConfigID == "" {
				return []ValidationError{missing("config_id")}
			}
		case "":
			return []ValidationError{missing("message_identifier")}
		}
	case SubclassInteractiveResponse:
		if m.ScreenDataField == "" {
			return []ValidationError{missing("screen_data_field")}
		}
	case SubclassExtendedEncKeyInfo:
		if m.NewKeyData == "" {
			return []ValidationError{missing("new_key_data")}
		}
	default:
		return []ValidationError{{
			Type:    AnomalyUnknownSubclass,
			Message: fmt.Sprintf("Unknown data command subclass %q", m.Subclass),
			Details: map[string]interface{}{"message_subclass": m.Subclass},
		}}
	}
	return nil
}

func missing(field string) ValidationError {
	return ValidationError{
		Type:    AnomalyMissingField,
		Message: fmt.Sprintf("Missing %s", field),
		Details: map[string]interface{}{"field": field},
	}
}

func isStateNumber(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
