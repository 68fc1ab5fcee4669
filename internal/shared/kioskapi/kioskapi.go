// Package kioskapi is the JSON contract between kiosk devices and the server.
// Both the HTTP handlers and the device client import it.
package kioskapi

// KioskTokenHeader carries the kiosk session token.
const KioskTokenHeader = "X-Kiosk-Token"

// LookupRequest is the body of POST /api/v1/kiosk/lookup.
type LookupRequest struct {
	EventID    string `json:"event_id"`
	Step       string `json:"step"`
	SmUsername string `json:"sm_username"`
	Phone      string `json:"phone,omitempty"`
}

// VerifyUsernameResponse answers step verify_username.
type VerifyUsernameResponse struct {
	RequestID   string `json:"request_id"`
	Step        string `json:"step"`
	OnGuestList bool   `json:"on_guestlist"`
	SmUsername  string `json:"sm_username,omitempty"`
}

// PrefillResponse answers step lookup_phone.
type PrefillResponse struct {
	RequestID      string  `json:"request_id"`
	Step           string  `json:"step"`
	SmUsername     string  `json:"sm_username"`
	UsernameLocked bool    `json:"username_locked"`
	Phone          string  `json:"phone"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Email          string  `json:"email"`
	Location       string  `json:"location"`
	GuestType      *string `json:"guest_type"`
	GuestExists    bool    `json:"guest_exists"`
	PrefillSource  string  `json:"prefill_source"`
}

// SubmitPayload is the body of POST /api/v1/kiosk/signatures. The offline
// queue stores the same shape.
type SubmitPayload struct {
	EventID            string `json:"event_id"`
	SmUsername         string `json:"sm_username"`
	Phone              string `json:"phone"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	Email              string `json:"email"`
	Location           string `json:"location"`
	Language           string `json:"language"`
	ReadConfirmed      bool   `json:"read_confirmed"`
	PrivacyAccepted    bool   `json:"privacy_accepted"`
	SignaturePNGBase64 string `json:"signature_png_base64"`
}

// SubmitResponse is returned with 201 Created.
type SubmitResponse struct {
	RequestID    string `json:"request_id"`
	SignatureID  string `json:"signature_id"`
	GuestID      string `json:"guest_id"`
	Status       string `json:"status"`
	PhoneChanged bool   `json:"phone_changed"`
	Message      string `json:"message"`
}
