package notification

import "encoding/json"

// ValidationResult is the outcome of the validation stage. Produced once
// per run per notification.
type ValidationResult struct {
	Successful    bool   `json:"successful"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

// Valid is shorthand for a successful validation.
func Valid() ValidationResult { return ValidationResult{Successful: true} }

// Invalid records a failed validation with a reason.
func Invalid(reason string) ValidationResult {
	return ValidationResult{Successful: false, InvalidReason: reason}
}

// DispatchResult is the outcome of one dispatch attempt on one channel.
// A single logical notification fanning out to several channels yields
// one DispatchResult per channel; each result beyond the first becomes a
// cloned sibling notification.
type DispatchResult struct {
	Successful     bool   `json:"successful"`
	MessageContent string `json:"messageContent,omitempty"`
	// Recipient is the concrete address the channel used (email address,
	// phone number, chat id), not the opaque recipient reference.
	Recipient string `json:"recipient,omitempty"`
	// DeliveryDetails is the provider's opaque delivery payload, kept
	// verbatim for reconciliation.
	DeliveryDetails json.RawMessage `json:"deliveryDetails,omitempty"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
}

// StatusMeta is the (validation, dispatch) pair recorded on a
// notification each run. Dispatch stays nil until the write stage.
type StatusMeta struct {
	Validation *ValidationResult `json:"validationResult"`
	Dispatch   *DispatchResult   `json:"dispatchResult"`
}
